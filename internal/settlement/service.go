package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SIMPLYBOYS/pay_usdc/internal/db"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrUnknownChain  = errors.New("unsupported chain")
	ErrEmptyBatch    = errors.New("batch has no recipients")
	ErrNotListOwner  = errors.New("recipient list belongs to another address")
	ErrMissingSender = errors.New("sender address is required")
	ErrNoListStore   = errors.New("recipient lists need a database")
)

// Store is the persistence the service needs. *db.DBServiceImpl satisfies it.
type Store interface {
	CreateBatch(batch db.Batch) error
	SaveSettlementResult(batchID string, position int, result types.SettlementResult) error
	CompleteBatch(batchID string, succeeded, failed int) error
	GetRecipientList(id int) (db.RecipientList, error)
	FindContactName(owner, address string) (string, error)
}

// Broadcaster streams batch progress to connected clients.
type Broadcaster interface {
	BroadcastSettlementResult(batchID string, index int, result types.SettlementResult) error
	BroadcastBatchCompleted(batchID string, succeeded, failed int) error
}

type BatchRequest struct {
	Chain        string                 `json:"chain"`
	Sender       string                 `json:"sender"`
	Recipients   []types.RecipientEntry `json:"recipients"`
	MemoTemplate string                 `json:"memoTemplate"`
	TotalAmount  string                 `json:"totalAmount"`
}

type ListRequest struct {
	ListID       int    `json:"-"`
	Chain        string `json:"chain"`
	Sender       string `json:"sender"`
	MemoTemplate string `json:"memoTemplate"`
	TotalAmount  string `json:"totalAmount"`
}

type BatchReport struct {
	ID        string                   `json:"id"`
	Chain     string                   `json:"chain"`
	Sender    string                   `json:"sender"`
	Results   []types.SettlementResult `json:"results"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
}

// Service runs batches on the registered chains and records them. store and
// broadcaster may be nil.
type Service struct {
	senders     map[string]*Sender
	store       Store
	broadcaster Broadcaster
	decimals    int
	newID       func() string
}

func NewService(store Store, broadcaster Broadcaster, decimals int) *Service {
	return &Service{
		senders:     make(map[string]*Sender),
		store:       store,
		broadcaster: broadcaster,
		decimals:    decimals,
		newID:       func() string { return uuid.NewString() },
	}
}

// Register makes chain available to Send. It is not safe to call once the
// service is serving requests.
func (s *Service) Register(chain string, sender *Sender) {
	s.senders[strings.ToLower(chain)] = sender
}

func (s *Service) Chains() []string {
	chains := make([]string, 0, len(s.senders))
	for c := range s.senders {
		chains = append(chains, c)
	}
	sort.Strings(chains)
	return chains
}

// Send runs one batch to completion. Errors are returned only when the batch
// could not start; per-recipient failures are in the report.
func (s *Service) Send(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	chain := strings.ToLower(req.Chain)
	sender, ok := s.senders[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, req.Chain)
	}
	if strings.TrimSpace(req.Sender) == "" {
		return nil, ErrMissingSender
	}
	if err := sender.ValidateAddress(req.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if len(req.Recipients) == 0 {
		return nil, ErrEmptyBatch
	}

	recipients := s.withContactNames(req.Sender, req.Recipients)

	report := &BatchReport{ID: s.newID(), Chain: chain, Sender: req.Sender}
	if s.store != nil {
		err := s.store.CreateBatch(db.Batch{
			ID:             report.ID,
			Sender:         req.Sender,
			Chain:          chain,
			MemoTemplate:   req.MemoTemplate,
			RecipientCount: len(recipients),
			Status:         db.BatchStatusRunning,
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Starting batch %s on %s: %d recipients from %s", report.ID, chain, len(recipients), req.Sender)

	report.Results = sender.SendBatch(ctx, req.Sender, recipients, BatchOptions{
		MemoTemplate: req.MemoTemplate,
		TotalAmount:  req.TotalAmount,
		Decimals:     s.decimals,
		Progress: func(index int, result types.SettlementResult) {
			s.record(report.ID, index, result)
		},
	})

	for _, r := range report.Results {
		if r.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	if s.store != nil {
		if err := s.store.CompleteBatch(report.ID, report.Succeeded, report.Failed); err != nil {
			logger.Error("Failed to complete batch %s: %v", report.ID, err)
		}
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastBatchCompleted(report.ID, report.Succeeded, report.Failed); err != nil {
			logger.Warn("Failed to broadcast completion of batch %s: %v", report.ID, err)
		}
	}

	logger.Info("Batch %s finished: %d succeeded, %d failed", report.ID, report.Succeeded, report.Failed)
	return report, nil
}

// SendList pays a saved recipient list. Only the list owner may send it.
func (s *Service) SendList(ctx context.Context, req ListRequest) (*BatchReport, error) {
	if s.store == nil {
		return nil, ErrNoListStore
	}
	list, err := s.store.GetRecipientList(req.ListID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(list.OwnerAddress, req.Sender) {
		return nil, ErrNotListOwner
	}

	recipients := make([]types.RecipientEntry, 0, len(list.Entries))
	for _, e := range list.Entries {
		recipients = append(recipients, e.RecipientEntry())
	}

	return s.Send(ctx, BatchRequest{
		Chain:        req.Chain,
		Sender:       req.Sender,
		Recipients:   recipients,
		MemoTemplate: req.MemoTemplate,
		TotalAmount:  req.TotalAmount,
	})
}

func (s *Service) record(batchID string, index int, result types.SettlementResult) {
	if s.store != nil {
		if err := s.store.SaveSettlementResult(batchID, index, result); err != nil {
			logger.Error("Failed to save result %d of batch %s: %v", index, batchID, err)
		}
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastSettlementResult(batchID, index, result); err != nil {
			logger.Warn("Failed to broadcast result %d of batch %s: %v", index, batchID, err)
		}
	}
}

// withContactNames returns a copy of recipients where unnamed entries take
// the sender's contact name for that address.
func (s *Service) withContactNames(owner string, recipients []types.RecipientEntry) []types.RecipientEntry {
	out := make([]types.RecipientEntry, len(recipients))
	copy(out, recipients)
	if s.store == nil {
		return out
	}
	for i := range out {
		if out[i].Name != "" || out[i].Address == "" {
			continue
		}
		name, err := s.store.FindContactName(owner, out[i].Address)
		if err != nil {
			logger.Warn("Contact lookup for %s failed: %v", out[i].Address, err)
			continue
		}
		out[i].Name = name
	}
	return out
}
