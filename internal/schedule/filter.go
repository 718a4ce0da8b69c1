package schedule

// MemberFilter narrows a schedule to at most one member. The zero value
// shows every member.
type MemberFilter struct {
	uid string
	set bool
}

func AllMembers() MemberFilter { return MemberFilter{} }

func OnlyMember(uid string) MemberFilter {
	return MemberFilter{uid: uid, set: true}
}

// Toggle selects uid, or clears the filter if uid is already selected.
func (f MemberFilter) Toggle(uid string) MemberFilter {
	if f.set && f.uid == uid {
		return AllMembers()
	}
	return OnlyMember(uid)
}

func (f MemberFilter) Selected() (string, bool) {
	return f.uid, f.set
}

func (f MemberFilter) Matches(assignee string) bool {
	return !f.set || f.uid == assignee
}
