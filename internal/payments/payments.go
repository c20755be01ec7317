// Package payments integrates Stripe Checkout for credit purchases.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"
)

// ErrNotConfigured indicates the Stripe keys are missing from configuration.
var ErrNotConfigured = errors.New("payments: stripe not configured")

// Service drives checkout sessions and webhook fulfillment.
type Service struct {
	db          *gorm.DB
	cfg         config.StripeConfig
	frontendURL string
}

// NewService constructs a payments Service and wires the Stripe API key.
func NewService(db *gorm.DB, cfg config.StripeConfig, frontendURL string) *Service {
	if strings.TrimSpace(cfg.SecretKey) != "" {
		stripe.Key = cfg.SecretKey
	}
	return &Service{
		db:          db,
		cfg:         cfg,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Configured reports whether checkout can be offered.
func (s *Service) Configured() bool {
	return s != nil && strings.TrimSpace(s.cfg.SecretKey) != ""
}

// ensureCustomer finds or creates the Stripe customer for a user and stores
// the ID on the user row.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(user.ID, 10),
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("payments: create customer: %w", err)
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("stripe_customer_id", cust.ID).Error; errUpdate != nil {
		return "", errUpdate
	}
	user.StripeCustomerID = cust.ID
	return cust.ID, nil
}

// CreateCheckoutSession starts a one-time payment checkout for a credit
// package and returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User, pkg *models.CreditPackage) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyEUR)),
					UnitAmount: stripe.Int64(pkg.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("%s pack (%d credits)", pkg.Name, pkg.Credits)),
						Description: stripe.String(pkg.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id":    strconv.FormatUint(user.ID, 10),
			"package_id": strconv.FormatUint(pkg.ID, 10),
			"credits":    strconv.FormatInt(pkg.Credits, 10),
		},
		SuccessURL: stripe.String(s.frontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.frontendURL + "/billing/cancel"),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("payments: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the Stripe customer portal for billing history.
func (s *Service) CreatePortalSession(ctx context.Context, user *models.User) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.frontendURL + "/settings/billing"),
	}
	sess, err := portal.New(params)
	if err != nil {
		return "", fmt.Errorf("payments: create portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and processes one Stripe webhook delivery.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if strings.TrimSpace(s.cfg.WebhookSecret) == "" {
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return fmt.Errorf("payments: verify webhook signature: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
			return fmt.Errorf("payments: decode session payload: %w", errUnmarshal)
		}
		return s.FulfillCheckout(ctx, &sess)
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &intent); errUnmarshal != nil {
			return fmt.Errorf("payments: decode payment intent payload: %w", errUnmarshal)
		}
		log.Warnf("payments: payment failed intent=%s amount=%d", intent.ID, intent.Amount)
		return nil
	default:
		return nil
	}
}

// FulfillCheckout credits the purchased package to the buyer. Replayed
// deliveries of the same session are ignored; the session ID is the
// idempotency key.
func (s *Service) FulfillCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID, errUser := strconv.ParseUint(sess.Metadata["user_id"], 10, 64)
	if errUser != nil {
		return fmt.Errorf("payments: session %s missing user_id metadata", sess.ID)
	}
	credits, errCredits := strconv.ParseInt(sess.Metadata["credits"], 10, 64)
	if errCredits != nil || credits <= 0 {
		return fmt.Errorf("payments: session %s missing credits metadata", sess.ID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if errCount := tx.Model(&models.Purchase{}).
			Where("stripe_payment_id = ?", sess.ID).
			Count(&existing).Error; errCount != nil {
			return errCount
		}
		if existing > 0 {
			log.Infof("payments: session %s already fulfilled", sess.ID)
			return nil
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("credits", gorm.Expr("credits + ?", credits))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("payments: user %d not found for session %s", userID, sess.ID)
		}

		purchase := models.Purchase{
			UserID:          userID,
			StripePaymentID: sess.ID,
			AmountCents:     sess.AmountTotal,
			Credits:         credits,
			Status:          models.PurchaseStatusSucceeded,
		}
		if errCreate := tx.Create(&purchase).Error; errCreate != nil {
			return errCreate
		}
		log.Infof("payments: credited %d credits to user %d (session %s)", credits, userID, sess.ID)
		return nil
	})
}
