package hawk

import "fmt"

// Error is a storage error code. The set of codes is closed; compare with
// errors.Is against the exported values below.
type Error int

// Storage state.
const (
	ErrNotOpen Error = iota + 1
)

// Users.
const (
	ErrUserUUIDAlreadyRegistered Error = iota + 100
	ErrUserLoginAlreadyRegistered
	ErrUserPasswordIncorrect
	ErrUserNotExists
	ErrUserAlreadyExists
	ErrUserUUIDCorrupted
	ErrUserRegistrationDateCorrupted
	ErrUserLoginCorrupted
	ErrUserPasswordHashCorrupted
	ErrUserNameCorrupted
	ErrUserSexCorrupted
	ErrUserBirthdayCorrupted
	ErrUserContactsCorrupted
	ErrUserGroupsCorrupted
	ErrUserContactRelationAlreadyExists
	ErrUserContactRelationNotExists
	ErrUserContactAlreadyExists
	ErrUserContactNotExists
	ErrUserGroupsRelationAlreadyExists
	ErrUserGroupsRelationNotExists
)

// Groups.
const (
	ErrGroupUUIDAlreadyRegistered Error = iota + 200
	ErrGroupNotExists
	ErrGroupAlreadyExists
	ErrGroupUUIDCorrupted
	ErrGroupRegistrationDateCorrupted
	ErrGroupNameCorrupted
	ErrGroupUsersCorrupted
	ErrGroupUserRelationAlreadyExists
	ErrGroupUserRelationNotExists
)

// Messages.
const (
	ErrMessageNotExists Error = iota + 300
	ErrMessageAlreadyExists
	ErrMessageUUIDCorrupted
	ErrMessageGroupUUIDCorrupted
	ErrMessageRegistrationDateCorrupted
	ErrMessageTypeCorrupted
	ErrMessageDataCorrupted
)

// Shared with the rest of the system.
const (
	ErrInvalidPtr Error = iota + 900
	ErrIncorrectVersion
	ErrIncorrectData
	ErrFileNotFound
	ErrObjectNotFile
	ErrOpenFileFail
	ErrReadFileFail
	ErrWriteFileFail
)

// Error returns the human readable message for the code.
func (e Error) Error() string {
	switch e {
	case ErrNotOpen:
		return "storage is not open"

	case ErrUserUUIDAlreadyRegistered:
		return "a user with this UUID is already registered"
	case ErrUserLoginAlreadyRegistered:
		return "a user with this login is already registered"
	case ErrUserPasswordIncorrect:
		return "incorrect password"
	case ErrUserNotExists:
		return "user does not exist"
	case ErrUserAlreadyExists:
		return "user already exists"
	case ErrUserUUIDCorrupted:
		return "user UUID is corrupted"
	case ErrUserRegistrationDateCorrupted:
		return "user registration date is corrupted"
	case ErrUserLoginCorrupted:
		return "user login is corrupted"
	case ErrUserPasswordHashCorrupted:
		return "user password hash is corrupted"
	case ErrUserNameCorrupted:
		return "user name is corrupted"
	case ErrUserSexCorrupted:
		return "user sex is corrupted"
	case ErrUserBirthdayCorrupted:
		return "user birthday is corrupted"
	case ErrUserContactsCorrupted:
		return "user contacts are corrupted"
	case ErrUserGroupsCorrupted:
		return "user groups are corrupted"
	case ErrUserContactRelationAlreadyExists:
		return "user-contact relation already exists"
	case ErrUserContactRelationNotExists:
		return "user-contact relation does not exist"
	case ErrUserContactAlreadyExists:
		return "user contact already exists"
	case ErrUserContactNotExists:
		return "user contact does not exist"
	case ErrUserGroupsRelationAlreadyExists:
		return "user-groups relation already exists"
	case ErrUserGroupsRelationNotExists:
		return "user-groups relation does not exist"

	case ErrGroupUUIDAlreadyRegistered:
		return "a group with this UUID is already registered"
	case ErrGroupNotExists:
		return "group does not exist"
	case ErrGroupAlreadyExists:
		return "group already exists"
	case ErrGroupUUIDCorrupted:
		return "group UUID is corrupted"
	case ErrGroupRegistrationDateCorrupted:
		return "group registration date is corrupted"
	case ErrGroupNameCorrupted:
		return "group name is corrupted"
	case ErrGroupUsersCorrupted:
		return "group users are corrupted"
	case ErrGroupUserRelationAlreadyExists:
		return "group-user relation already exists"
	case ErrGroupUserRelationNotExists:
		return "group-user relation does not exist"

	case ErrMessageNotExists:
		return "message does not exist"
	case ErrMessageAlreadyExists:
		return "message already exists"
	case ErrMessageUUIDCorrupted:
		return "message UUID is corrupted"
	case ErrMessageGroupUUIDCorrupted:
		return "message group UUID is corrupted"
	case ErrMessageRegistrationDateCorrupted:
		return "message date is corrupted"
	case ErrMessageTypeCorrupted:
		return "message type is corrupted"
	case ErrMessageDataCorrupted:
		return "message data is corrupted"

	case ErrInvalidPtr:
		return "invalid pointer"
	case ErrIncorrectVersion:
		return "incorrect version"
	case ErrIncorrectData:
		return "incorrect data"
	case ErrFileNotFound:
		return "file not found"
	case ErrObjectNotFile:
		return "object is not a file"
	case ErrOpenFileFail:
		return "failed to open file"
	case ErrReadFileFail:
		return "failed to read file"
	case ErrWriteFileFail:
		return "failed to write file"
	}
	return fmt.Sprintf("unknown storage error %d", int(e))
}

// Code returns the numeric value of the error.
func (e Error) Code() int { return int(e) }
