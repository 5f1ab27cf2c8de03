package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// idAccessor exposes the string primary key shared by every uuid keyed record.
type idAccessor interface {
	getID() string
	setID(id string)
}

func (r *orderRecord) getID() string { return r.ID }
func (r *orderRecord) setID(id string) { r.ID = id }
func (r *paymentEventRecord) getID() string { return r.ID }
func (r *paymentEventRecord) setID(id string) { r.ID = id }
func (r *verificationCheckRecord) getID() string { return r.ID }
func (r *verificationCheckRecord) setID(id string) { r.ID = id }
func (r *auditEntryRecord) getID() string { return r.ID }
func (r *auditEntryRecord) setID(id string) { r.ID = id }
func (r *productRecord) getID() string { return r.ID }
func (r *productRecord) setID(id string) { r.ID = id }
func (r *stockKeyRecord) getID() string { return r.ID }
func (r *stockKeyRecord) setID(id string) { r.ID = id }

type uuidRecord interface {
	comparable
	idAccessor
}

func uuidHandlers[T uuidRecord](newRecord func() T) repository.ModelHandlers[T] {
	var zero T
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == zero {
				return uuid.Nil
			}
			return parseUUID(record.getID())
		},
		SetID: func(record T, id uuid.UUID) {
			if record == zero {
				return
			}
			record.setID(id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			if record == zero {
				return ""
			}
			return strings.TrimSpace(record.getID())
		},
	}
}

func orderHandlers() repository.ModelHandlers[*orderRecord] {
	return uuidHandlers(func() *orderRecord { return &orderRecord{} })
}

func paymentEventHandlers() repository.ModelHandlers[*paymentEventRecord] {
	return uuidHandlers(func() *paymentEventRecord { return &paymentEventRecord{} })
}

func verificationCheckHandlers() repository.ModelHandlers[*verificationCheckRecord] {
	return uuidHandlers(func() *verificationCheckRecord { return &verificationCheckRecord{} })
}

func auditEntryHandlers() repository.ModelHandlers[*auditEntryRecord] {
	return uuidHandlers(func() *auditEntryRecord { return &auditEntryRecord{} })
}

func productHandlers() repository.ModelHandlers[*productRecord] {
	return uuidHandlers(func() *productRecord { return &productRecord{} })
}

func stockKeyHandlers() repository.ModelHandlers[*stockKeyRecord] {
	return uuidHandlers(func() *stockKeyRecord { return &stockKeyRecord{} })
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// newID returns a time ordered identifier so rows sharing a timestamp keep
// their insertion order when sorted by id.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
