package db

import "github.com/SIMPLYBOYS/pay_usdc/internal/types"

// DBService interface defines the methods we need from the database
type DBService interface {
	FindContactName(owner, address string) (string, error)
	SaveContact(contact Contact) (int, error)
	GetRecipientList(id int) (RecipientList, error)
	SaveRecipientList(list RecipientList) (int, error)
	ClaimProfile(owner, slug string) error
	GetProfile(owner string) (Profile, error)
	CreateBatch(batch Batch) error
	SaveSettlementResult(batchID string, position int, result types.SettlementResult) error
	CompleteBatch(batchID string, succeeded, failed int) error
	GetBatch(id string) (Batch, error)
	Close() error
}
