package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

const (
	ModuleLOS = "los"
	ModuleLMS = "lms"
)

type LoanRepository interface {
	ApplicationTenant(ctx context.Context, id int64) (int64, error)
	AccountTenant(ctx context.Context, id int64) (int64, error)
	SetApplicationStatus(ctx context.Context, id int64, status model.ApplicationStatus) error
	Disburse(ctx context.Context, accountID int64, at time.Time, principal *float64) (*model.LoanAccount, error)
	Repay(ctx context.Context, rep *model.Repayment) (*model.LoanAccount, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ownedBy rejects rows of another tenant for non-masters.
func ownedBy(actor *model.Actor, tenantID int64) error {
	if actor.IsMaster() {
		return nil
	}
	if actor.TenantID == nil {
		return ErrNoTenant
	}
	if *actor.TenantID != tenantID {
		return ErrForbidden
	}
	return nil
}

// checkApplication verifies the application exists and belongs to the caller.
func checkApplication(ctx context.Context, loans LoanRepository, actor *model.Actor, id int64) error {
	tid, err := loans.ApplicationTenant(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return InvalidFields(map[string]string{"loan_application_id": "loan application does not exist"})
	}
	if err != nil {
		return err
	}
	return ownedBy(actor, tid)
}

func checkAccount(ctx context.Context, loans LoanRepository, actor *model.Actor, id int64) error {
	tid, err := loans.AccountTenant(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return InvalidFields(map[string]string{"loan_account_id": "loan account does not exist"})
	}
	if err != nil {
		return err
	}
	return ownedBy(actor, tid)
}

type LOSService struct {
	loans       LoanRepository
	tenants     BranchChecker
	customers   *repository.Store[model.Customer]
	assessments *repository.Store[model.CreditAssessment]
	audit       *AuditService

	Applications *Resource[model.LoanApplication]
	KYC          *Resource[model.KYCDetail]
	Assessments  *Resource[model.CreditAssessment]
}

func NewLOSService(db *pg.DB, loans LoanRepository, tenants BranchChecker, audit *AuditService) *LOSService {
	s := &LOSService{
		loans:       loans,
		tenants:     tenants,
		customers:   repository.NewStore[model.Customer](db, repository.CustomerOptions()),
		assessments: repository.NewStore[model.CreditAssessment](db, repository.CreditAssessmentOptions()),
		audit:       audit,
	}
	s.Applications = NewResource(ResourceConfig[model.LoanApplication]{
		Name:    "Loan application",
		Module:  ModuleLOS,
		Store:   repository.NewStore[model.LoanApplication](db, repository.LoanApplicationOptions()),
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
		BeforeCreate: func(ctx context.Context, actor *model.Actor, app *model.LoanApplication) error {
			app.ApplicationID = uuid.NewString()
			app.CreatedByID = actor.UserRef()
			if app.Status == "" {
				app.Status = model.AppNew
			}
			return s.checkRefs(ctx, app)
		},
		BeforeUpdate: func(ctx context.Context, _ *model.Actor, _, app *model.LoanApplication) error {
			return s.checkRefs(ctx, app)
		},
	})
	s.KYC = NewResource(ResourceConfig[model.KYCDetail]{
		Name:   "KYC detail",
		Module: ModuleLOS,
		Store:  repository.NewStore[model.KYCDetail](db, repository.KYCDetailOptions()),
		Audit:  audit,
		Scoped: true,
		BeforeCreate: func(ctx context.Context, actor *model.Actor, k *model.KYCDetail) error {
			if k.Status == "" {
				k.Status = model.KYCPending
			}
			return checkApplication(ctx, loans, actor, k.LoanApplicationID)
		},
		BeforeUpdate: func(ctx context.Context, actor *model.Actor, _, k *model.KYCDetail) error {
			return checkApplication(ctx, loans, actor, k.LoanApplicationID)
		},
	})
	s.Assessments = NewResource(ResourceConfig[model.CreditAssessment]{
		Name:   "Credit assessment",
		Module: ModuleLOS,
		Store:  s.assessments,
		Audit:  audit,
		Scoped: true,
		BeforeCreate: func(ctx context.Context, actor *model.Actor, a *model.CreditAssessment) error {
			if a.Status == "" {
				a.Status = model.AssessmentUnderReview
			}
			return checkApplication(ctx, loans, actor, a.LoanApplicationID)
		},
		BeforeUpdate: func(ctx context.Context, actor *model.Actor, _, a *model.CreditAssessment) error {
			return checkApplication(ctx, loans, actor, a.LoanApplicationID)
		},
	})
	return s
}

// checkRefs keeps the branch and customer of an application inside its tenant.
func (s *LOSService) checkRefs(ctx context.Context, app *model.LoanApplication) error {
	tid := app.TenantID
	if _, err := s.customers.GetByID(ctx, app.CustomerID, &tid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return InvalidFields(map[string]string{"customer_id": "customer does not exist"})
		}
		return err
	}
	if app.BranchID == nil {
		return nil
	}
	ok, err := s.tenants.BranchExists(ctx, *app.BranchID, tid)
	if err != nil {
		return err
	}
	if !ok {
		return InvalidFields(map[string]string{"branch_id": "branch does not belong to the tenant"})
	}
	return nil
}

func (s *LOSService) ChangeStatus(ctx context.Context, actor *model.Actor, key string, req model.ChangeStatusRequest) (*model.LoanApplication, error) {
	raw := strings.TrimSpace(req.Status)
	if raw == "" {
		return nil, Invalid("status is required")
	}
	status := model.ApplicationStatus(raw)
	if !status.Valid() {
		return nil, Invalid("Invalid status")
	}
	app, err := s.Applications.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}

	action := model.ActionUpdate
	if status == model.AppApproved {
		action = model.ActionApprove
	}
	err = s.loans.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.loans.SetApplicationStatus(ctx, app.ID, status); err != nil {
			return storeError(err, "Loan application")
		}
		desc := fmt.Sprintf("Application %s status changed from %s to %s", app.ApplicationID, app.Status, status)
		return s.audit.Record(ctx, actor, action, ModuleLOS, desc)
	})
	if err != nil {
		return nil, err
	}
	app.Status = status
	return app, nil
}

func (s *LOSService) UpdateScore(ctx context.Context, actor *model.Actor, key string, req model.UpdateScoreRequest) (*model.CreditAssessment, error) {
	if req.Score == nil {
		return nil, Invalid("score required")
	}
	a, err := s.Assessments.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	a.Score = req.Score
	if req.Remarks != nil {
		a.Remarks = *req.Remarks
	}
	if req.ApprovedLimit != nil {
		a.ApprovedLimit = *req.ApprovedLimit
	}
	if req.Status != nil {
		a.Status = *req.Status
	}
	if err := Check(a); err != nil {
		return nil, err
	}
	err = s.loans.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.assessments.Update(ctx, a); err != nil {
			return storeError(err, "Credit assessment")
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleLOS,
			fmt.Sprintf("Credit score of application %d set to %d", a.LoanApplicationID, *a.Score))
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
