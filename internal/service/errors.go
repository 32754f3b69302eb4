package service

import "errors"

var (
	ErrGroupRequired         = errors.New("group is required")
	ErrMemberNotFound        = errors.New("member not found")
	ErrEmptyRemoteMembership = errors.New("remote returned no members for a group with stored members")
)
