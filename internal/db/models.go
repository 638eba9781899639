package db

import (
	"time"

	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
)

type Contact struct {
	ID           int
	OwnerAddress string
	Name         string
	Address      string
	Chain        string
	CreatedAt    time.Time
}

type RecipientList struct {
	ID           int
	OwnerAddress string
	Name         string
	CreatedAt    time.Time
	Entries      []RecipientListEntry
}

type RecipientListEntry struct {
	Position   int
	Address    string
	Name       string
	Amount     string
	Percentage string
}

func (e RecipientListEntry) RecipientEntry() types.RecipientEntry {
	return types.RecipientEntry{
		Address:    e.Address,
		Amount:     e.Amount,
		Percentage: e.Percentage,
		Name:       e.Name,
	}
}

type Profile struct {
	OwnerAddress string
	Slug         string
	ClaimedAt    time.Time
}

const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
)

type Batch struct {
	ID             string                   `json:"id"`
	Sender         string                   `json:"sender"`
	Chain          string                   `json:"chain"`
	MemoTemplate   string                   `json:"memoTemplate,omitempty"`
	RecipientCount int                      `json:"recipientCount"`
	Succeeded      int                      `json:"succeeded"`
	Failed         int                      `json:"failed"`
	Status         string                   `json:"status"`
	CreatedAt      time.Time                `json:"createdAt"`
	CompletedAt    *time.Time               `json:"completedAt,omitempty"`
	Results        []types.SettlementResult `json:"results"`
}
