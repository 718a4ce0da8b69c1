// Package backup exports a group's chores and completions as an encrypted
// archive in S3-compatible storage, and imports them back.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/chora/internal/dateutil"
	"github.com/dukerupert/chora/internal/model"
	"github.com/dukerupert/chora/internal/recurrence"
	"github.com/dukerupert/chora/internal/store"
)

const archiveVersion = 1

var (
	ErrDisabled      = errors.New("backups are not configured")
	ErrWrongGroup    = errors.New("archive belongs to another group")
	ErrArchiveFormat = errors.New("unsupported archive")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3 S3Config
	// RetentionDays removes a group's archives older than this after each
	// export. Zero keeps everything.
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever a group's backup state changes.
type StatusCallback func(groupID string, s Status)

// Object describes one stored archive.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type archiveChore struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	AssignedTo string    `json:"assignedTo"`
	StartDate  string    `json:"startDate"`
	AddedTime  time.Time `json:"addedTime"`
	recurrence.Encoded
}

// Archive is the plaintext inside an encrypted export.
type Archive struct {
	Version     int                      `json:"version"`
	ExportedAt  time.Time                `json:"exportedAt"`
	Group       model.Group              `json:"group"`
	Chores      []archiveChore           `json:"chores"`
	Completions []model.CompletionRecord `json:"completions"`
}

// Manager manages encrypted group archives in S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	client   s3Client
	status   map[string]Status
	callback StatusCallback

	groups      *store.GroupStore
	chores      *store.ChoreStore
	completions *store.CompletionStore
	logger      *slog.Logger
	now         func() time.Time
}

func NewManager(cfg Config, groups *store.GroupStore, chores *store.ChoreStore, completions *store.CompletionStore, callback StatusCallback, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:         cfg,
		status:      make(map[string]Status),
		callback:    callback,
		groups:      groups,
		chores:      chores,
		completions: completions,
		logger:      logger,
		now:         time.Now,
	}
	if cfg.S3.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Status returns the backup status of a group.
func (m *Manager) Status(groupID string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return Status{State: StateDisabled}
	}
	if s, ok := m.status[groupID]; ok {
		return s
	}
	return Status{State: StateIdle}
}

func (m *Manager) setStatus(groupID string, s Status) {
	m.mu.Lock()
	m.status[groupID] = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(groupID, s)
	}
}

func (m *Manager) fail(groupID string, err error) error {
	m.setStatus(groupID, Status{State: StateError, Error: err.Error()})
	m.logger.Error("backup failed", "group_id", groupID, "error", err)
	return err
}

func prefix(groupID string) string { return groupID + "/" }

// RunNow exports the group and uploads it. It returns the object key.
func (m *Manager) RunNow(ctx context.Context, groupID, passphrase string) (string, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil {
		return "", ErrDisabled
	}
	if passphrase == "" {
		return "", fmt.Errorf("passphrase is required")
	}

	m.setStatus(groupID, Status{State: StateRunning, InProgress: true})

	archive, err := m.export(ctx, groupID)
	if err != nil {
		return "", m.fail(groupID, err)
	}
	plaintext, err := json.Marshal(archive)
	if err != nil {
		return "", m.fail(groupID, fmt.Errorf("marshal archive: %w", err))
	}
	sealed, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return "", m.fail(groupID, err)
	}

	key := prefix(groupID) + fmt.Sprintf("backup-%s.json.enc", archive.ExportedAt.Format("2006-01-02T150405.000Z"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", m.fail(groupID, fmt.Errorf("upload to s3: %w", err))
	}

	done := archive.ExportedAt
	m.setStatus(groupID, Status{State: StateIdle, LastBackup: &done})
	m.logger.Info("backup uploaded", "group_id", groupID, "key", key, "chores", len(archive.Chores), "completions", len(archive.Completions))

	if retention > 0 {
		if err := m.Cleanup(ctx, groupID, retention); err != nil {
			m.logger.Warn("backup cleanup failed", "group_id", groupID, "error", err)
		}
	}
	return key, nil
}

func (m *Manager) export(ctx context.Context, groupID string) (*Archive, error) {
	g, err := m.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("group %s not found", groupID)
	}
	chores, err := m.chores.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	completions, err := m.completions.List(ctx, groupID)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		Version:     archiveVersion,
		ExportedAt:  m.now().UTC(),
		Group:       *g,
		Chores:      make([]archiveChore, 0, len(chores)),
		Completions: completions,
	}
	for _, c := range chores {
		a.Chores = append(a.Chores, archiveChore{
			ID:         c.ID,
			Title:      c.Title,
			AssignedTo: c.AssignedTo,
			StartDate:  dateutil.Format(c.StartDate),
			AddedTime:  c.AddedTime,
			Encoded:    c.Rule.Encode(),
		})
	}
	return a, nil
}

// List returns the group's archives, newest first.
func (m *Manager) List(ctx context.Context, groupID string) ([]Object, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	var objects []Object
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix(groupID)),
	}
	for {
		out, err := client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, o := range out.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}

	slices.SortFunc(objects, func(a, b Object) int {
		return b.LastModified.Compare(a.LastModified)
	})
	return objects, nil
}

// Restore downloads and decrypts an archive and writes its chores and
// completions back into the group. Existing documents with the same ids
// are replaced; nothing is deleted.
func (m *Manager) Restore(ctx context.Context, groupID, key, passphrase string) (*Archive, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}
	if !strings.HasPrefix(key, prefix(groupID)) {
		return nil, ErrWrongGroup
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return nil, err
	}

	var a Archive
	if err := json.Unmarshal(plaintext, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveFormat, err)
	}
	if a.Version != archiveVersion {
		return nil, fmt.Errorf("%w: version %d", ErrArchiveFormat, a.Version)
	}
	if a.Group.ID != groupID {
		return nil, ErrWrongGroup
	}

	for _, ac := range a.Chores {
		c := model.Chore{ID: ac.ID, Title: ac.Title, AssignedTo: ac.AssignedTo, AddedTime: ac.AddedTime}
		start, err := dateutil.Parse(ac.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: chore %s: %v", ErrArchiveFormat, ac.ID, err)
		}
		c.StartDate = start
		rule, err := recurrence.Normalize(ac.Encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: chore %s: %v", ErrArchiveFormat, ac.ID, err)
		}
		c.Rule = rule
		if err := m.chores.Import(ctx, groupID, c); err != nil {
			return nil, err
		}
	}
	for _, rec := range a.Completions {
		if err := m.completions.Import(ctx, groupID, rec); err != nil {
			return nil, err
		}
	}

	m.logger.Info("backup restored", "group_id", groupID, "key", key, "chores", len(a.Chores), "completions", len(a.Completions))
	return &a, nil
}

// Cleanup deletes the group's archives older than the retention period.
func (m *Manager) Cleanup(ctx context.Context, groupID string, retentionDays int) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	objects, err := m.List(ctx, groupID)
	if err != nil {
		return err
	}

	before := m.now().UTC().AddDate(0, 0, -retentionDays)
	for _, o := range objects {
		if !o.LastModified.Before(before) {
			continue
		}
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("failed to delete s3 object", "key", o.Key, "error", err)
		}
	}
	return nil
}
