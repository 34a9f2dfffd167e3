// Package testing provides test utilities and database setup for testing the payments core
package testing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mrand "math/rand"

	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCustomer creates a customer with a hashed password and a
// zero-balance wallet.
func (tf *TestFixtures) CreateTestCustomer() (*models.Customer, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	suffix := mrand.Intn(100000000)
	customer := &models.Customer{
		Email:        fmt.Sprintf("viewer.%d@example.com", suffix),
		PasswordHash: string(hashedPassword),
		FirstName:    "Jane",
		LastName:     "Viewer",
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	wallet := &models.Wallet{CustomerID: customer.ID}
	if err := tf.DB.DB.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create test wallet: %w", err)
	}

	return customer, nil
}

// CreateTestAffiliate creates a customer carrying a distro referral code.
func (tf *TestFixtures) CreateTestAffiliate() (*models.Customer, error) {
	customer, err := tf.CreateTestCustomer()
	if err != nil {
		return nil, err
	}

	code := fmt.Sprintf("DSTR%06d", mrand.Intn(1000000))
	customer.DistroCode = &code
	if err := tf.DB.DB.Save(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to set distro code: %w", err)
	}

	return customer, nil
}

// CreatePlatformAccount creates the singleton revenue account that
// settlement credits with the remainder share.
func (tf *TestFixtures) CreatePlatformAccount() (*models.Customer, error) {
	customer, err := tf.CreateTestCustomer()
	if err != nil {
		return nil, err
	}

	customer.IsPlatform = utils.ToPtr(true)
	if err := tf.DB.DB.Save(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to mark platform account: %w", err)
	}

	return customer, nil
}

// CreateTestFilm creates a published film for the given filmmaker.
func (tf *TestFixtures) CreateTestFilm(filmmakerID uint, buyPrice, rentPrice string) (*models.Film, error) {
	buy, err := decimal.NewFromString(buyPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid buy price %q: %w", buyPrice, err)
	}
	rent, err := decimal.NewFromString(rentPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid rent price %q: %w", rentPrice, err)
	}

	film := &models.Film{
		FilmmakerID: filmmakerID,
		Title:       fmt.Sprintf("Test Film %d", mrand.Intn(100000)),
		Status:      models.FilmStatusPublished,
		Currency:    utils.USDCurrency,
		BuyPrice:    buy,
		RentPrice:   rent,
		RentalHours: 48,
	}

	if err := tf.DB.DB.Create(film).Error; err != nil {
		return nil, fmt.Errorf("failed to create test film: %w", err)
	}

	return film, nil
}

// FundWallet sets the customer's wallet balances directly, bypassing the
// ledger. Tests that care about ledger legs should fund via the flows.
func (tf *TestFixtures) FundWallet(customerID uint, reelbux, distro string) error {
	rb, err := decimal.NewFromString(reelbux)
	if err != nil {
		return fmt.Errorf("invalid reelbux amount %q: %w", reelbux, err)
	}
	ds, err := decimal.NewFromString(distro)
	if err != nil {
		return fmt.Errorf("invalid distro amount %q: %w", distro, err)
	}

	return tf.DB.DB.Model(&models.Wallet{}).
		Where("customer_id = ?", customerID).
		Updates(map[string]any{
			"reel_bux_balance": rb,
			"distro_balance":   ds,
		}).Error
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(customerID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		CustomerID:  customerID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
