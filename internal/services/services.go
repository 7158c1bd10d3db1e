// Package services holds the business rules of the CRM. Every method takes the
// request context, runs multi-table writes in a single transaction and returns
// *httperror.HTTPError values for failures the caller can fix.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Upload is a file received with a request.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// invalidField returns a 400 naming the offending field.
func invalidField(field, msg string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, msg).AddMetaValue("field", field)
}

// PayloadError converts union decoding failures to 400s naming the field.
func PayloadError(err error) error {
	var perr *payload.Error
	if errors.As(err, &perr) {
		return invalidField(perr.Field, perr.Msg)
	}
	return err
}

// exists reports whether a row of model with id exists.
func exists(tx *gorm.DB, model any, id uint) (bool, error) {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// requireRow returns a 400 for field when the referenced row is missing.
func requireRow(tx *gorm.DB, model any, id uint, field string) error {
	ok, err := exists(tx, model, id)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", field, err)
	}
	if !ok {
		return invalidField(field, "invalid "+field)
	}
	return nil
}

// resolveFeatures loads the features with the given ids, failing with a 400
// when any id is unknown.
func resolveFeatures(tx *gorm.DB, field string, ids []uint) ([]models.Feature, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Feature{}, nil
	}
	var features []models.Feature
	if err := tx.Where("id IN ?", ids).Order("id").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	if len(features) != len(ids) {
		found := make(map[uint]bool, len(features))
		for _, f := range features {
			found[f.ID] = true
		}
		var missing []uint
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, invalidField(field, fmt.Sprintf("unknown feature ids: %v", missing))
	}
	return features, nil
}

// uniqueIDs drops duplicates and zero values, keeping the result sorted.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// saveUploads stores every upload below prefix. On failure the blobs already
// written are removed again.
func saveUploads(ctx context.Context, blobs blobstore.Store, log *zap.Logger, prefix string, uploads []Upload, allowed ...string) ([]blobstore.Object, error) {
	saved := make([]blobstore.Object, 0, len(uploads))
	for _, up := range uploads {
		obj, err := saveUpload(ctx, blobs, prefix, up, allowed...)
		if err != nil {
			removeBlobs(ctx, blobs, log, objectKeys(saved))
			return nil, err
		}
		saved = append(saved, obj)
	}
	return saved, nil
}

func saveUpload(ctx context.Context, blobs blobstore.Store, prefix string, up Upload, allowed ...string) (blobstore.Object, error) {
	rc, err := up.Open()
	if err != nil {
		return blobstore.Object{}, fmt.Errorf("open upload %s: %w", up.Name, err)
	}
	defer rc.Close()
	obj, err := blobs.Save(ctx, prefix, rc, allowed...)
	if errors.Is(err, blobstore.ErrUnsupportedType) {
		return blobstore.Object{}, httperror.NewHTTPErrorf(http.StatusUnsupportedMediaType, "%s: %v", up.Name, err)
	}
	if err != nil {
		return blobstore.Object{}, fmt.Errorf("store upload %s: %w", up.Name, err)
	}
	return obj, nil
}

func objectKeys(objs []blobstore.Object) []string {
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

// removeBlobs deletes blobs whose rows are gone. Failures only leave orphaned
// files behind, so they are logged rather than returned.
func removeBlobs(ctx context.Context, blobs blobstore.Store, log *zap.Logger, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			log.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
		}
	}
}

// openBlob streams a stored blob, mapping a missing file to 404.
func openBlob(ctx context.Context, blobs blobstore.Store, key, resource string) (io.ReadCloser, string, error) {
	if key == "" {
		return nil, "", httpx.NotFound(resource)
	}
	rc, ctype, err := blobs.Open(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, "", httpx.NotFound(resource)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", resource, err)
	}
	return rc, ctype, nil
}
