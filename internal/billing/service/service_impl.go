package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	billingdomain "github.com/nextlevelcode/meterbill/internal/billing/domain"
	clientdomain "github.com/nextlevelcode/meterbill/internal/client/domain"
	"github.com/nextlevelcode/meterbill/internal/clock"
	"github.com/nextlevelcode/meterbill/internal/config"
	"github.com/nextlevelcode/meterbill/internal/invoice/render"
	ledgerdomain "github.com/nextlevelcode/meterbill/internal/ledger/domain"
	obsmetrics "github.com/nextlevelcode/meterbill/internal/observability/metrics"
	"github.com/nextlevelcode/meterbill/internal/pix"
	"github.com/nextlevelcode/meterbill/internal/providers/email"
	"github.com/nextlevelcode/meterbill/internal/providers/pdf"
	"github.com/nextlevelcode/meterbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// payHashBytes is the entropy behind each pay hash. 32 bytes hex-encode
// to the 64-character token carried in payment and verification URLs.
const payHashBytes = 32

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	LedgerSvc  ledgerdomain.Service
	ClientSvc  clientdomain.Service
	EmailProv  email.Provider
	PDFProv    pdf.Provider
	Cfg        config.Config
	BillingCfg *config.BillingConfigHolder
	Rand       io.Reader `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ledgerSvc  ledgerdomain.Service
	clientSvc  clientdomain.Service
	emailProv  email.Provider
	pdfProv    pdf.Provider
	cfg        config.Config
	billingCfg *config.BillingConfigHolder
	rand       io.Reader
}

func NewService(p ServiceParam) billingdomain.Service {
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		ledgerSvc:  p.LedgerSvc,
		clientSvc:  p.ClientSvc,
		emailProv:  p.EmailProv,
		pdfProv:    p.PDFProv,
		cfg:        p.Cfg,
		billingCfg: p.BillingCfg,
		rand:       rnd,
	}
}

func (s *Service) Issue(ctx context.Context, clientID snowflake.ID, dueDate int) (*billingdomain.Billing, error) {
	if dueDate < 1 || dueDate > 31 {
		return nil, billingdomain.ErrInvalidDueDate
	}

	billing := &billingdomain.Billing{
		ID:       s.genID.Generate(),
		ClientID: clientID,
		DueDate:  dueDate,
		Status:   false,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var clients int64
		if err := tx.Model(&clientdomain.Client{}).Where("id = ?", clientID).Count(&clients).Error; err != nil {
			return err
		}
		if clients == 0 {
			return clientdomain.ErrClientNotFound
		}

		// One non-terminal cycle per client. The count handles the
		// sequential case; the partial unique index on (client_id)
		// WHERE status = FALSE rejects the insert when two concurrent
		// calls both pass the count.
		var open int64
		if err := tx.Model(&billingdomain.Billing{}).
			Where("client_id = ? AND status = ?", clientID, false).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return billingdomain.ErrDuplicateOpenCycle
		}

		if err := tx.Create(billing).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return billingdomain.ErrDuplicateOpenCycle
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("billing cycle opened",
		zap.String("billing_id", billing.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.Int("due_date", dueDate),
	)
	return billing, nil
}

func (s *Service) Invoice(ctx context.Context, clientID snowflake.ID) (*billingdomain.Billing, error) {
	client, err := s.clientSvc.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	summary, err := s.ledgerSvc.Aggregate(ctx, clientID)
	if err != nil {
		obsmetrics.Billing().IncInvoiceFailure()
		return nil, err
	}

	payHash, err := s.newPayHash()
	if err != nil {
		return nil, err
	}

	var billing billingdomain.Billing
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("client_id = ? AND status = ? AND pay_hash IS NULL", clientID, false).
			First(&billing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billingdomain.ErrBillingNotFound
		}
		if err != nil {
			return err
		}

		billing.AmountDue = summary.ClientAmount
		billing.PayHash = &payHash
		// Assigns the hash only while the cycle is still bare. A
		// concurrent invoicing that already minted one affects zero
		// rows here instead of having its hash overwritten.
		res := tx.Model(&billingdomain.Billing{}).
			Where("id = ? AND status = ? AND pay_hash IS NULL", billing.ID, false).
			Updates(map[string]any{
				"amount_due": billing.AmountDue,
				"pay_hash":   payHash,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return billingdomain.ErrBillingNotFound
		}

		// Access stays off until a payment receipt arrives.
		return tx.Model(&clientdomain.Client{}).
			Where("id = ?", clientID).
			Update("active", false).Error
	})
	if err != nil {
		obsmetrics.Billing().IncInvoiceFailure()
		return nil, err
	}

	obsmetrics.Billing().IncInvoiceIssued()
	s.log.Info("billing invoiced",
		zap.String("billing_id", billing.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("amount_due", billing.AmountDue.StringFixed(2)),
	)

	// Notification happens after the commit. A bounced email never
	// rolls back an invoiced cycle.
	s.sendInvoiceEmail(ctx, client, &billing, summary, payHash)
	return &billing, nil
}

func (s *Service) InvoiceDueToday(ctx context.Context) error {
	today := s.clock.Now().Day()

	var due []billingdomain.Billing
	if err := s.db.WithContext(ctx).
		Where("due_date = ? AND status = ? AND pay_hash IS NULL", today, false).
		Find(&due).Error; err != nil {
		return err
	}

	var errs error
	for _, billing := range due {
		if _, err := s.Invoice(ctx, billing.ClientID); err != nil {
			s.log.Error("scheduled invoicing failed",
				zap.String("client_id", billing.ClientID.String()),
				zap.Error(err),
			)
			errs = errors.Join(errs, fmt.Errorf("client %s: %w", billing.ClientID, err))
		}
	}
	return errs
}

func (s *Service) SubmitReceipt(ctx context.Context, payHash, filename string, data []byte) (*billingdomain.Billing, error) {
	var billing billingdomain.Billing
	err := s.db.WithContext(ctx).
		Where("pay_hash = ? AND status = ?", payHash, false).
		First(&billing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrInvalidHash
	}
	if err != nil {
		return nil, err
	}

	client, err := s.clientSvc.Get(ctx, billing.ClientID)
	if err != nil {
		return nil, err
	}

	path, err := s.storeReceipt(billing.ClientID, filename, data)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&billingdomain.Billing{}).
			Where("pay_hash = ? AND status = ?", payHash, false).
			Update("receipt_file", path)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return billingdomain.ErrInvalidHash
		}

		// Proof of payment restores access immediately; confirmation
		// comes later from the admin.
		return tx.Model(&clientdomain.Client{}).
			Where("id = ?", billing.ClientID).
			Update("active", true).Error
	})
	if err != nil {
		// The proof was written before the update; a hash consumed in
		// between would otherwise leave it orphaned on disk.
		os.Remove(path)
		return nil, err
	}
	billing.ReceiptFile = &path

	s.log.Info("receipt submitted",
		zap.String("billing_id", billing.ID.String()),
		zap.String("client_id", billing.ClientID.String()),
	)
	s.sendVerifyEmail(ctx, client, &billing, payHash)
	return &billing, nil
}

func (s *Service) VerifyPayment(ctx context.Context, payHash string) (*billingdomain.Billing, error) {
	now := s.clock.Now()

	var billing billingdomain.Billing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("pay_hash = ?", payHash).First(&billing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billingdomain.ErrBillingNotFound
		}
		if err != nil {
			return err
		}

		// The conditional update consumes the hash at most once. Under
		// concurrent verification only one transaction affects a row;
		// the rest see zero and fail.
		res := tx.Model(&billingdomain.Billing{}).
			Where("pay_hash = ? AND status = ?", payHash, false).
			Updates(map[string]any{
				"status":   true,
				"paid_at":  now,
				"pay_hash": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return billingdomain.ErrBillingNotFound
		}

		// The successor cycle opens in the same transaction, so a
		// confirmed payment always leaves the client with a fresh open
		// cycle on the same due date.
		next := &billingdomain.Billing{
			ID:       s.genID.Generate(),
			ClientID: billing.ClientID,
			DueDate:  billing.DueDate,
			Status:   false,
		}
		return tx.Create(next).Error
	})
	if err != nil {
		return nil, err
	}

	billing.Status = true
	billing.PaidAt = &now
	billing.PayHash = nil

	obsmetrics.Billing().IncPaymentVerified()
	s.log.Info("payment verified",
		zap.String("billing_id", billing.ID.String()),
		zap.String("client_id", billing.ClientID.String()),
		zap.String("amount", billing.AmountDue.StringFixed(2)),
	)

	if client, err := s.clientSvc.Get(ctx, billing.ClientID); err == nil {
		s.sendPaidEmail(ctx, client, &billing)
	}
	return &billing, nil
}

func (s *Service) ValidateHash(ctx context.Context, payHash string) (bool, error) {
	if payHash == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&billingdomain.Billing{}).
		Where("pay_hash = ? AND status = ?", payHash, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*billingdomain.Billing, error) {
	var billing billingdomain.Billing
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&billing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrBillingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &billing, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID snowflake.ID, page pagination.Pagination) ([]billingdomain.Billing, *pagination.PageInfo, error) {
	after, err := page.After()
	if err != nil {
		return nil, nil, err
	}
	limit := page.Limit()

	query := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("id DESC").
		Limit(limit + 1)
	if after != 0 {
		query = query.Where("id < ?", after)
	}

	var billings []billingdomain.Billing
	if err := query.Find(&billings).Error; err != nil {
		return nil, nil, err
	}

	billings, info := pagination.BuildPage(billings, limit, func(b billingdomain.Billing) snowflake.ID {
		return b.ID
	})
	return billings, info, nil
}

func (s *Service) ReceiptPath(ctx context.Context, id snowflake.ID) (string, error) {
	billing, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if billing.ReceiptFile == nil {
		return "", billingdomain.ErrReceiptNotFound
	}
	return *billing.ReceiptFile, nil
}

func (s *Service) ReceiptPDF(ctx context.Context, id snowflake.ID) ([]byte, error) {
	billing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !billing.Status || billing.PaidAt == nil {
		return nil, billingdomain.ErrReceiptNotFound
	}

	client, err := s.clientSvc.Get(ctx, billing.ClientID)
	if err != nil {
		return nil, err
	}

	return s.pdfProv.GenerateReceipt(ctx, pdf.ReceiptData{
		CompanyName: s.cfg.CompanyName,
		ReceiptID:   billing.ID.String(),
		ClientName:  client.Name,
		ClientEmail: client.Email,
		AmountPaid:  billing.AmountDue.StringFixed(2),
		PaidAt:      billing.PaidAt.Format("2006-01-02 15:04"),
		IssueDate:   s.clock.Now().Format("2006-01-02"),
	})
}

func (s *Service) newPayHash() (string, error) {
	buf := make([]byte, payHashBytes)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", fmt.Errorf("generate pay hash: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// storeReceipt writes the uploaded proof under a per-client directory.
// The random name prevents collisions and path guessing.
func (s *Service) storeReceipt(clientID snowflake.ID, filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".bin"
	}
	dir := filepath.Join(s.cfg.ReceiptsDir, clientID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipts dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s%s", s.clock.Now().Format("20060102"), uuid.NewString(), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("store receipt: %w", err)
	}
	return path, nil
}

func (s *Service) sendInvoiceEmail(ctx context.Context, client *clientdomain.Client, billing *billingdomain.Billing, summary *ledgerdomain.Summary, payHash string) {
	bcfg := s.billingCfg.Get()

	payload := pix.Payload{
		Key:          bcfg.PixKey,
		Amount:       billing.AmountDue,
		MerchantName: s.cfg.CompanyName,
		MerchantCity: bcfg.PixCity,
		Description:  bcfg.InvoiceNote,
		Currency:     bcfg.CurrencyCode,
	}
	encoded, err := payload.Encode()
	if err != nil {
		s.notifyFailed("invoice", client.Email, err)
		return
	}
	png, err := pix.QRCodePNG(encoded)
	if err != nil {
		s.notifyFailed("invoice", client.Email, err)
		return
	}

	body, err := render.Invoice(render.InvoiceData{
		CompanyName:  s.cfg.CompanyName,
		ClientName:   client.Name,
		IssuedAt:     s.clock.Now(),
		AmountDue:    billing.AmountDue.StringFixed(2),
		RequestCount: len(summary.RequestRecords),
		RequestCost:  summary.RequestCost.StringFixed(6),
		UploadCount:  len(summary.UploadRecords),
		UploadCost:   summary.UploadCost.StringFixed(6),
		FlatFee:      summary.FlatFee.StringFixed(6),
		PixPayload:   encoded,
		PayURL:       fmt.Sprintf("%s/%s", s.cfg.PayBaseURL, payHash),
	})
	if err != nil {
		s.notifyFailed("invoice", client.Email, err)
		return
	}

	subject := fmt.Sprintf("%s: invoice for %s", s.cfg.CompanyName, s.clock.Now().Format("January 2006"))
	if err := s.emailProv.Send(ctx, client.Email, subject, body, png, nil); err != nil {
		s.notifyFailed("invoice", client.Email, err)
	}
}

func (s *Service) sendVerifyEmail(ctx context.Context, client *clientdomain.Client, billing *billingdomain.Billing, payHash string) {
	if s.cfg.AdminEmail == "" {
		return
	}

	body, err := render.VerifyBilling(render.VerifyBillingData{
		ClientName:  client.Name,
		ClientID:    client.ID.String(),
		AmountDue:   billing.AmountDue.StringFixed(2),
		DownloadURL: fmt.Sprintf("%s/v1/billings/%s/receipt", s.cfg.BaseURL, billing.ID),
		ConfirmURL:  fmt.Sprintf("%s/v1/billings/verify/%s", s.cfg.BaseURL, payHash),
	})
	if err != nil {
		s.notifyFailed("verify", s.cfg.AdminEmail, err)
		return
	}

	subject := fmt.Sprintf("Payment receipt from %s awaiting confirmation", client.Name)
	if err := s.emailProv.Send(ctx, s.cfg.AdminEmail, subject, body, nil, nil); err != nil {
		s.notifyFailed("verify", s.cfg.AdminEmail, err)
	}
}

func (s *Service) sendPaidEmail(ctx context.Context, client *clientdomain.Client, billing *billingdomain.Billing) {
	body, err := render.BillingPaid(render.BillingPaidData{
		ClientName:   client.Name,
		AmountPaid:   billing.AmountDue.StringFixed(2),
		PaidAt:       *billing.PaidAt,
		ReceiptURL:   fmt.Sprintf("%s/v1/billings/%s/receipt.pdf", s.cfg.BaseURL, billing.ID),
		SupportEmail: s.cfg.AdminEmail,
	})
	if err != nil {
		s.notifyFailed("paid", client.Email, err)
		return
	}

	var attachments []email.Attachment
	if pdfBytes, err := s.ReceiptPDF(ctx, billing.ID); err == nil && len(pdfBytes) > 0 {
		attachments = append(attachments, email.Attachment{
			Filename:    fmt.Sprintf("receipt-%s.pdf", billing.ID),
			ContentType: "application/pdf",
			Data:        pdfBytes,
		})
	}

	subject := fmt.Sprintf("%s: payment confirmed", s.cfg.CompanyName)
	if err := s.emailProv.Send(ctx, client.Email, subject, body, nil, attachments); err != nil {
		s.notifyFailed("paid", client.Email, err)
	}
}

func (s *Service) notifyFailed(kind, to string, err error) {
	obsmetrics.Billing().IncNotificationFailure(kind)
	s.log.Warn("notification failed",
		zap.String("kind", kind),
		zap.String("to", to),
		zap.Error(err),
	)
}
