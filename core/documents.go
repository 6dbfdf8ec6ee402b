package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const (
	documentMaxUploadBytes = 50 << 20
	documentThumbMaxSize   = 320
	documentDefaultCat     = "other"
)

// sanitizeCategory limita la categoria a un segment de ruta segur.
func sanitizeCategory(cat string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(cat)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return documentDefaultCat
	}
	return b.String()
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._-")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

// documentContentType dedueix el tipus per l'extensió, o pel contingut si no n'hi ha.
func documentContentType(name string, sniff []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			return parsed
		}
		return ct
	}
	ct := http.DetectContentType(sniff)
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return parsed
	}
	return ct
}

// UploadDocument desa el fitxer i en registra la fila. Si està vinculat a un sinistre
// dispara DocumentAdded.
func (a *App) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, documentMaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, validationf("invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &fieldError{Fields: map[string]string{"file": "required"}})
		return
	}
	defer file.Close()
	if header.Size <= 0 {
		writeError(w, r, &fieldError{Fields: map[string]string{"file": "empty file"}})
		return
	}

	ctx := r.Context()
	doc := db.Document{
		ID:                uuid.NewString(),
		RelatedEntityType: strings.TrimSpace(r.FormValue("relatedEntityType")),
		Category:          sanitizeCategory(r.FormValue("category")),
		OriginalName:      filepath.Base(header.Filename),
		FileName:          sanitizeFilename(header.Filename),
		Size:              header.Size,
	}
	if u := currentUser(r); u != nil {
		doc.UploadedBy = u.Username
	}
	h := a.DB.Handle()
	if raw := strings.TrimSpace(r.FormValue("claimId")); raw != "" {
		id, err := canonicalID(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := db.Claims.Get(ctx, h, id); err != nil {
			if db.IsNotFound(err) {
				err = validationf("unknown claimId %s", id)
			}
			writeError(w, r, err)
			return
		}
		doc.ClaimID = &id
	}
	if raw := strings.TrimSpace(r.FormValue("relatedEntityId")); raw != "" {
		id, err := canonicalID(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		doc.RelatedEntityID = &id
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		writeError(w, r, err)
		return
	}
	sniff = sniff[:n]
	doc.ContentType = documentContentType(doc.FileName, sniff)
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	doc.StoragePath = doc.Category + "/" + doc.ID + ext

	hash := sha256.New()
	body := io.TeeReader(io.MultiReader(bytes.NewReader(sniff), file), hash)
	if err := a.Storage.Save(ctx, doc.StoragePath, body, header.Size, doc.ContentType); err != nil {
		writeError(w, r, err)
		return
	}
	doc.Checksum = hex.EncodeToString(hash.Sum(nil))

	now := a.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	if err := db.Documents.Insert(ctx, h, &doc); err != nil {
		if derr := a.Storage.Delete(ctx, doc.StoragePath); derr != nil {
			Log().Error().Err(derr).Str("document_id", doc.ID).Msg("fitxer orfe després d'un error d'inserció")
		}
		writeError(w, r, fromDB(err, "document"))
		return
	}
	Log().Info().Str("document_id", doc.ID).Str("key", doc.StoragePath).Int64("size", doc.Size).Msg("document desat")

	if doc.ClaimID != nil {
		a.notifyClaimEvent(ctx, *doc.ClaimID, currentUser(r), EventDocumentAdded)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *App) ListDocuments(w http.ResponseWriter, r *http.Request) {
	lq, err := listQuery(r, map[string]string{"createdAt": "created_at", "fileName": "file_name", "size": "size_bytes", "category": "category"})
	if err != nil {
		writeError(w, r, err)
		return
	}
	lq.Where = append(lq.Where, db.Eq("is_deleted", false))
	q := r.URL.Query()
	for param, col := range map[string]string{
		"claimId": "claim_id", "relatedEntityId": "related_entity_id",
		"relatedEntityType": "related_entity_type", "category": "category",
	} {
		if v := strings.TrimSpace(q.Get(param)); v != "" {
			lq.Where = append(lq.Where, db.Eq(col, v))
		}
	}
	items, total, err := db.Documents.List(r.Context(), a.DB.Handle(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}

func (a *App) liveDocument(r *http.Request) (*db.Document, error) {
	id, err := routeID(r)
	if err != nil {
		return nil, err
	}
	d, err := db.Documents.Get(r.Context(), a.DB.Handle(), id)
	if err != nil {
		return nil, fromDB(err, "document")
	}
	if d.IsDeleted {
		return nil, notFoundf("document")
	}
	return d, nil
}

func (a *App) GetDocument(w http.ResponseWriter, r *http.Request) {
	d, err := a.liveDocument(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *App) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	d, err := a.liveDocument(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rc, err := a.Storage.Open(r.Context(), d.StoragePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.OriginalName}))
	if d.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		Debugf("descàrrega interrompuda %s: %v", d.ID, err)
	}
}

// PreviewDocument retorna una miniatura JPEG per a les imatges i el fitxer tal qual per a la resta.
func (a *App) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	d, err := a.liveDocument(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !strings.HasPrefix(d.ContentType, "image/") {
		a.DownloadDocument(w, r)
		return
	}
	rc, err := a.Storage.Open(r.Context(), d.StoragePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		writeError(w, r, validationf("document is not a decodable image"))
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumbnail(img, documentThumbMaxSize), &jpeg.Options{Quality: 82}); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(buf.Bytes())
}

// thumbnail escala la imatge perquè el costat més llarg no passi de maxDim.
func thumbnail(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= maxDim && height <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(width)
	if height > width {
		scale = float64(maxDim) / float64(height)
	}
	nw, nh := max(1, int(float64(width)*scale)), max(1, int(float64(height)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// DeleteDocument marca el document com a esborrat i n'elimina el fitxer.
func (a *App) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	d, err := a.liveDocument(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	d.IsDeleted = true
	d.UpdatedAt = a.now()
	if err := db.Documents.Update(ctx, a.DB.Handle(), d); err != nil {
		writeError(w, r, fromDB(err, "document"))
		return
	}
	if err := a.Storage.Delete(ctx, d.StoragePath); err != nil {
		Log().Error().Err(err).Str("document_id", d.ID).Msg("no s'ha pogut esborrar el fitxer")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) mountDocuments(r *mux.Router) {
	r.HandleFunc("/documents", a.ListDocuments).Methods(http.MethodGet)
	r.HandleFunc("/documents", a.UploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/documents/{id}", a.GetDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", a.DeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/documents/{id}/download", a.DownloadDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}/preview", a.PreviewDocument).Methods(http.MethodGet)
}
