// file: service/account_service.go

package service

import (
	"context"
	"encoding/json"
	"errors"
	"go-ledger-api/logger"
	"go-ledger-api/model"
	"go-ledger-api/repository"

	"github.com/sirupsen/logrus"
)

// ErrDuplicateAccountNumber indicates the requested account number is already
// taken. Uniqueness is enforced by the store's index, so two concurrent
// creations of the same number cannot both succeed.
var ErrDuplicateAccountNumber = errors.New("account number already exists")

// AccountService is the account registry: it creates accounts and lists them
// scoped to the caller's visibility. It never mutates balances; that is the
// transaction engine's job.
type AccountService struct {
	repo  repository.IAccountRepository
	cache ICacheClient
}

func NewAccountService(repo repository.IAccountRepository, cache ICacheClient) *AccountService {
	return &AccountService{
		repo:  repo,
		cache: cache,
	}
}

// CreateAccount opens a new zero-balance account owned by the principal.
func (s *AccountService) CreateAccount(ctx context.Context, principal model.Principal, req model.CreateAccountRequest) (*model.Account, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"owner_id":       principal.ID,
		"account_number": req.AccountNumber,
		"currency":       req.Currency,
	})
	log.Info("Creating new account")

	account := &model.Account{
		OwnerID:       principal.ID,
		AccountNumber: req.AccountNumber,
		Currency:      req.Currency,
	}

	if err := s.repo.CreateAccount(account); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrDuplicateAccountNumber
		}
		return nil, err
	}

	invalidateAccountsCache(ctx, s.cache, principal.ID)

	return account, nil
}

// ListAccounts returns one page of accounts in creation order. Privileged
// callers see every account; everyone else sees only their own.
func (s *AccountService) ListAccounts(ctx context.Context, principal model.Principal, page model.Pagination) ([]*model.Account, error) {
	page = page.Normalize()

	// Privileged listings are not cached; admin views need fresh balances.
	if principal.Privileged {
		return s.repo.GetAllAccounts(page)
	}

	// Cache-aside, default window only. Non-default windows are rare and go
	// straight to the store, which keeps invalidation a single-key delete.
	useCache := s.cache != nil && page.Skip == 0 && page.Limit == model.DefaultPageLimit
	cacheKey := ownerAccountsCacheKey(principal.ID)

	if useCache {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var accounts []*model.Account
			if err := json.Unmarshal([]byte(cached), &accounts); err == nil {
				return accounts, nil
			}
		}
	}

	accounts, err := s.repo.GetAccountsByOwnerID(principal.ID, page)
	if err != nil {
		return nil, err
	}

	if useCache {
		if data, err := json.Marshal(accounts); err == nil {
			s.cache.Set(ctx, cacheKey, data, accountsCacheTTL)
		}
	}

	return accounts, nil
}
