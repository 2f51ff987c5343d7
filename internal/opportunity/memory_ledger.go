package opportunity

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

type memoryAccount struct {
	balance   int
	lastDaily time.Time
}

// MemoryLedger is a process-local ledger for development and tests.
type MemoryLedger struct {
	mu             sync.Mutex
	accounts       map[string]*memoryAccount
	initialBalance int
	now            func() time.Time
}

func NewMemoryLedger(initialBalance int) *MemoryLedger {
	if initialBalance < 0 {
		initialBalance = 0
	}
	return &MemoryLedger{
		accounts:       make(map[string]*memoryAccount),
		initialBalance: initialBalance,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// account must be called with mu held.
func (l *MemoryLedger) account(userID string) *memoryAccount {
	acct, ok := l.accounts[userID]
	if !ok {
		acct = &memoryAccount{balance: l.initialBalance, lastDaily: l.now()}
		l.accounts[userID] = acct
	}
	return acct
}

func (l *MemoryLedger) Balance(ctx context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.accounts[userID]; ok {
		return acct.balance, nil
	}
	return l.initialBalance, nil
}

func (l *MemoryLedger) HasOpportunity(ctx context.Context, userID string) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	return balance > 0, err
}

func (l *MemoryLedger) TryConsume(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.account(userID)
	if acct.balance <= 0 {
		return false, nil
	}
	acct.balance--
	return true, nil
}

func (l *MemoryLedger) Award(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return apperrors.ErrInvalidArgument.Explain("award amount must be positive, got %d", amount)
	}
	if userID == "" {
		return apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(userID).balance += amount
	return nil
}

func (l *MemoryLedger) TryAwardDaily(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.account(userID)
	now := l.now()
	y1, m1, d1 := acct.lastDaily.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return false, nil
	}
	acct.balance++
	acct.lastDaily = now
	return true, nil
}
