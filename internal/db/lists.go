package db

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,30}[a-z0-9])$`)

// FindContactName returns the owner's name for address, or "" when the
// address is not in the owner's contacts.
func (s *DBServiceImpl) FindContactName(owner, address string) (string, error) {
	var name string
	err := s.db.QueryRow(`
		SELECT name FROM contacts
		WHERE owner_address = $1 AND address = $2`, owner, address).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", &apperrors.DatabaseError{Operation: "find contact", Err: err}
	}
	return name, nil
}

// SaveContact stores a named address in the owner's address book. Saving an
// address the owner already has renames it.
func (s *DBServiceImpl) SaveContact(contact Contact) (int, error) {
	var id int
	err := s.db.QueryRow(`
		INSERT INTO contacts (owner_address, name, address, chain)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_address, address)
		DO UPDATE SET name = EXCLUDED.name, chain = EXCLUDED.chain
		RETURNING id`, contact.OwnerAddress, contact.Name, contact.Address, contact.Chain).Scan(&id)
	if err != nil {
		return 0, &apperrors.DatabaseError{Operation: "save contact", Err: err}
	}
	return id, nil
}

// GetRecipientList loads a list and its entries in position order.
func (s *DBServiceImpl) GetRecipientList(id int) (RecipientList, error) {
	var list RecipientList
	err := s.db.QueryRow(`
		SELECT id, owner_address, name, created_at
		FROM recipient_lists
		WHERE id = $1`, id).Scan(&list.ID, &list.OwnerAddress, &list.Name, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RecipientList{}, &apperrors.NotFoundError{Resource: "recipient list", Identifier: strconv.Itoa(id)}
		}
		return RecipientList{}, &apperrors.DatabaseError{Operation: "get recipient list", Err: err}
	}

	rows, err := s.db.Query(`
		SELECT position, address, name, amount, percentage
		FROM recipient_list_entries
		WHERE list_id = $1
		ORDER BY position`, id)
	if err != nil {
		return RecipientList{}, &apperrors.DatabaseError{Operation: "get recipient list entries", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var e RecipientListEntry
		if err := rows.Scan(&e.Position, &e.Address, &e.Name, &e.Amount, &e.Percentage); err != nil {
			return RecipientList{}, fmt.Errorf("error scanning recipient list entry: %w", err)
		}
		list.Entries = append(list.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return RecipientList{}, fmt.Errorf("error iterating recipient list entries: %w", err)
	}

	return list, nil
}

// SaveRecipientList stores a new list and its entries in one transaction and
// returns the list ID. Entry positions follow slice order.
func (s *DBServiceImpl) SaveRecipientList(list RecipientList) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int
	err = tx.QueryRow(`
		INSERT INTO recipient_lists (owner_address, name)
		VALUES ($1, $2)
		RETURNING id`, list.OwnerAddress, list.Name).Scan(&id)
	if err != nil {
		return 0, &apperrors.DatabaseError{Operation: "create recipient list", Err: err}
	}

	for i, e := range list.Entries {
		_, err = tx.Exec(`
			INSERT INTO recipient_list_entries (list_id, position, address, name, amount, percentage)
			VALUES ($1, $2, $3, $4, $5, $6)`, id, i, e.Address, e.Name, e.Amount, e.Percentage)
		if err != nil {
			return 0, &apperrors.DatabaseError{Operation: "add recipient list entry", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &apperrors.DatabaseError{Operation: "commit recipient list", Err: err}
	}
	return id, nil
}

// ClaimProfile binds slug to owner. A slug can be claimed once, and an owner
// holds at most one slug.
func (s *DBServiceImpl) ClaimProfile(owner, slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid profile slug %q: use 3-32 lowercase letters, digits or hyphens", slug)
	}
	_, err := s.db.Exec(`
		INSERT INTO profiles (owner_address, slug)
		VALUES ($1, $2)`, owner, slug)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if pqErr.Constraint == "profiles_pkey" {
				return &apperrors.ConflictError{Resource: "profile for owner", Identifier: owner}
			}
			return &apperrors.ConflictError{Resource: "profile", Identifier: slug}
		}
		return &apperrors.DatabaseError{Operation: "claim profile", Err: err}
	}
	return nil
}

func (s *DBServiceImpl) GetProfile(owner string) (Profile, error) {
	var p Profile
	err := s.db.QueryRow(`
		SELECT owner_address, slug, claimed_at
		FROM profiles
		WHERE owner_address = $1`, owner).Scan(&p.OwnerAddress, &p.Slug, &p.ClaimedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, &apperrors.NotFoundError{Resource: "profile", Identifier: owner}
		}
		return Profile{}, &apperrors.DatabaseError{Operation: "get profile", Err: err}
	}
	return p, nil
}
