package sqlitestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hawk-go/internal/hawk"
	"hawk-go/internal/validator"
)

const userColumns = "uuid, registration_date, login, password_hash, name, sex, birthday"

func scanUser(row interface{ Scan(...any) error }) (*hawk.User, error) {
	var (
		u             hawk.User
		reg, birthday string
		sex           int64
	)
	if err := row.Scan(&u.UUID, &reg, &u.Login, &u.PasswordHash, &u.Name, &sex, &birthday); err != nil {
		return nil, err
	}
	var err error
	if u.RegistrationDate, err = validator.ParseTime(reg); err != nil {
		return nil, hawk.ErrUserRegistrationDateCorrupted
	}
	if u.Birthday, err = validator.ParseTime(birthday); err != nil {
		return nil, hawk.ErrUserBirthdayCorrupted
	}
	if sex < 0 || sex > 255 {
		return nil, hawk.ErrUserSexCorrupted
	}
	u.Sex = hawk.Sex(sex)
	return &u, nil
}

func findUser(ctx context.Context, q querier, where string, arg any) (*hawk.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hawk.ErrUserNotExists
	}
	return u, err
}

func checkUser(u *hawk.User) error {
	switch {
	case u.UUID == "":
		return hawk.ErrUserUUIDCorrupted
	case u.Login == "":
		return hawk.ErrUserLoginCorrupted
	}
	return nil
}

func insertUser(ctx context.Context, q querier, u *hawk.User) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.UUID, validator.FormatTime(u.RegistrationDate), u.Login, nonNil(u.PasswordHash),
		u.Name, int64(u.Sex), validator.FormatOptionalTime(u.Birthday))
	return err
}

// AddUser stores a new user.
func (s *Store) AddUser(u *hawk.User) error {
	if u == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := checkUser(u); err != nil {
		return fmt.Errorf("adding user %s: %w", u.UUID, err)
	}

	ctx := context.Background()
	if _, err := findUser(ctx, s.db, "uuid = ?", u.UUID); !errors.Is(err, hawk.ErrUserNotExists) {
		return fmt.Errorf("adding user %s: %w", u.UUID, hawk.ErrUserUUIDAlreadyRegistered)
	}
	if _, err := findUser(ctx, s.db, "login = ?", u.Login); !errors.Is(err, hawk.ErrUserNotExists) {
		return fmt.Errorf("adding user %s: %w", u.Login, hawk.ErrUserLoginAlreadyRegistered)
	}
	if err := insertUser(ctx, s.db, u); err != nil {
		return fmt.Errorf("adding user %s: %w", u.UUID, err)
	}
	return nil
}

// UpdateUser overwrites login, password hash, name, sex and birthday.
func (s *Store) UpdateUser(u *hawk.User) error {
	if u == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := checkUser(u); err != nil {
		return fmt.Errorf("updating user %s: %w", u.UUID, err)
	}

	ctx := context.Background()
	old, err := findUser(ctx, s.db, "uuid = ?", u.UUID)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.UUID, err)
	}
	if u.Login != old.Login {
		if _, err := findUser(ctx, s.db, "login = ?", u.Login); err == nil {
			return fmt.Errorf("updating user %s: %w", u.UUID, hawk.ErrUserLoginAlreadyRegistered)
		}
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET login = ?, password_hash = ?, name = ?, sex = ?, birthday = ? WHERE uuid = ?",
		u.Login, nonNil(u.PasswordHash), u.Name, int64(u.Sex), validator.FormatOptionalTime(u.Birthday), u.UUID)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.UUID, err)
	}
	return nil
}

func (s *Store) FindUserByUUID(id string) (*hawk.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return findUser(context.Background(), s.db, "uuid = ?", id)
}

func (s *Store) FindUserByAuthentication(login string, passwordHash []byte) (*hawk.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	u, err := findUser(context.Background(), s.db, "login = ?", login)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(u.PasswordHash, passwordHash) {
		return nil, hawk.ErrUserPasswordIncorrect
	}
	return u, nil
}

// RemoveUser deletes the user. Contacts and memberships go with it through
// the foreign keys. Unknown users are ignored.
func (s *Store) RemoveUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM users WHERE uuid = ?", id); err != nil {
		return fmt.Errorf("removing user %s: %w", id, err)
	}
	return nil
}

// nonNil keeps NOT NULL blob columns satisfied for empty payloads.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
