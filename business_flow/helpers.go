// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

import (
	"context"
	"encoding/json"

	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
)

// getCustomer loads an active customer or returns the business error the
// flows expect.
func getCustomer(ctx context.Context, repo repository.CustomerRepository, customerID uint) (models.Customer, error) {
	customer, err := repo.ByID(ctx, customerID)
	if err != nil {
		return models.Customer{}, err
	}
	if customer == nil {
		return models.Customer{}, ErrCustomerNotFound
	}
	if customer.IsActive != nil && !*customer.IsActive {
		return models.Customer{}, ErrAccountInactive
	}
	return *customer, nil
}

// getFilm loads a sellable film by UUID.
func getFilm(ctx context.Context, repo repository.FilmRepository, filmUUID string) (models.Film, error) {
	film, err := repo.ByUUID(ctx, filmUUID)
	if err != nil {
		return models.Film{}, err
	}
	if film == nil {
		return models.Film{}, ErrFilmNotFound
	}
	if !film.IsPublished() {
		return models.Film{}, ErrFilmNotPublished
	}
	return *film, nil
}

// getPlatformAccount loads the singleton platform revenue account. Its
// absence is a deployment fault, not a user error.
func getPlatformAccount(ctx context.Context, repo repository.CustomerRepository) (models.Customer, error) {
	platform, err := repo.GetPlatformAccount(ctx)
	if err != nil {
		return models.Customer{}, err
	}
	if platform == nil {
		return models.Customer{}, ErrPlatformAccountMissing
	}
	return *platform, nil
}

// resolveAffiliate maps a referral code to its owner. Unknown codes and
// self-referrals degrade silently to no affiliate.
func resolveAffiliate(ctx context.Context, repo repository.CustomerRepository, distroCode string, payerID uint) (*models.Customer, error) {
	if distroCode == "" {
		return nil, nil
	}
	affiliate, err := repo.ByDistroCode(ctx, distroCode)
	if err != nil {
		return nil, err
	}
	if affiliate == nil || affiliate.ID == payerID {
		return nil, nil
	}
	if affiliate.IsActive != nil && !*affiliate.IsActive {
		return nil, nil
	}
	return affiliate, nil
}

// createAuditLog writes an audit record; failures are deliberately
// ignored at call sites so auditing never breaks a payment.
func createAuditLog(ctx context.Context, repo repository.AuditLogRepository, customer *models.Customer, action, description string, success bool, errorMessage *string, metadata *ClientMetadata) error {
	log := &models.AuditLog{
		Action:       action,
		Description:  utils.ToPtr(description),
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMessage,
		CreatedAt:    utils.UTCNow(),
	}
	if customer != nil && customer.ID != 0 {
		log.CustomerID = utils.ToPtr(customer.ID)
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			log.IPAddress = utils.ToPtr(metadata.IPAddress)
		}
		if metadata.UserAgent != "" {
			log.UserAgent = utils.ToPtr(metadata.UserAgent)
		}
		if metadata.RequestID != "" {
			log.RequestID = utils.ToPtr(metadata.RequestID)
		}
		if raw, err := json.Marshal(metadata); err == nil {
			log.Metadata = raw
		}
	}
	return repo.Save(ctx, log)
}

// marshalMetadata encodes flow metadata for the transaction jsonb column.
func marshalMetadata(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
