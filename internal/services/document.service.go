package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/storage"
)

const ModuleDocuments = "documents"

type TenantLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Tenant, error)
}

// Upload is a file received from a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type DocumentService struct {
	files     storage.ObjectStore
	tenants   TenantLookup
	store     *repository.Store[model.Document]
	customers *repository.Store[model.Customer]
	audit     *AuditService
	maxSize   int64

	Documents *Resource[model.Document]
}

func NewDocumentService(db *pg.DB, files storage.ObjectStore, tenants TenantLookup, dir TenantDirectory, audit *AuditService, maxSize int64) *DocumentService {
	s := &DocumentService{
		files:     files,
		tenants:   tenants,
		store:     repository.NewStore[model.Document](db, repository.DocumentOptions()),
		customers: repository.NewStore[model.Customer](db, repository.CustomerOptions()),
		audit:     audit,
		maxSize:   maxSize,
	}
	s.Documents = NewResource(ResourceConfig[model.Document]{
		Name:     "Document",
		Module:   ModuleDocuments,
		Store:    s.store,
		Audit:    audit,
		Tenants:  dir,
		Scoped:   true,
		ReadOnly: []string{"file_key", "file_name", "content_type", "size", "uploaded_by_id"},
		BeforeCreate: func(ctx context.Context, actor *model.Actor, d *model.Document) error {
			d.UploadedByID = actor.UserRef()
			d.FileKey, d.FileName, d.ContentType, d.Size = "", "", "", 0
			return s.checkCustomer(ctx, d)
		},
		BeforeUpdate: func(ctx context.Context, _ *model.Actor, _, d *model.Document) error {
			return s.checkCustomer(ctx, d)
		},
	})
	return s
}

// checkCustomer keeps the document's customer inside the document's tenant.
func (s *DocumentService) checkCustomer(ctx context.Context, d *model.Document) error {
	tid := d.TenantID
	_, err := s.customers.GetByID(ctx, d.CustomerID, &tid)
	if errors.Is(err, repository.ErrNotFound) {
		return InvalidFields(map[string]string{"customer_id": "customer does not exist"})
	}
	return err
}

func documentKey(tenantUUID string, id int64, name string) string {
	return fmt.Sprintf("tenants/%s/documents/%d/%s", tenantUUID, id, name)
}

// cleanName keeps the base name of an uploaded file so it cannot escape its key prefix.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// Upload stores the file of document key and records its metadata.
func (s *DocumentService) Upload(ctx context.Context, actor *model.Actor, key string, f Upload) (*model.Document, error) {
	if f.Body == nil {
		return nil, InvalidFields(map[string]string{"file": "file is required"})
	}
	if s.maxSize > 0 && f.Size > s.maxSize {
		return nil, InvalidFields(map[string]string{"file": fmt.Sprintf("file exceeds the %d byte limit", s.maxSize)})
	}
	doc, err := s.Documents.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.GetByID(ctx, doc.TenantID)
	if err != nil {
		return nil, storeError(err, "Tenant")
	}

	name := cleanName(f.Name)
	objectKey := documentKey(tenant.TenantUUID, doc.ID, name)
	if err := s.files.Put(ctx, objectKey, f.Body, f.Size, f.ContentType); err != nil {
		logger.Error("[documents] upload failed", "key", objectKey, "error", err)
		return nil, err
	}

	doc.FileKey = objectKey
	doc.FileName = name
	doc.ContentType = f.ContentType
	doc.Size = f.Size
	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, doc); err != nil {
			return storeError(err, "Document")
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleDocuments, "Uploaded file "+objectKey)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Download(ctx context.Context, actor *model.Actor, key string) (*model.DownloadLink, error) {
	doc, err := s.Documents.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	if doc.FileKey == "" {
		return nil, notFound("no file uploaded")
	}
	url, expires, err := s.files.PresignGet(ctx, doc.FileKey)
	if err != nil {
		return nil, err
	}
	return &model.DownloadLink{URL: url, ExpiresAt: expires}, nil
}
