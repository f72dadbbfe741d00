package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
	"github.com/24981a0558-joel/manna-contribution/internal/sheet"
)

type viewDTO struct {
	Rows           []domain.Contribution `json:"rows"`
	Count          int                   `json:"count"`
	Total          decimal.Decimal       `json:"total"`
	FormattedTotal string                `json:"formattedTotal"`
	Counter        int64                 `json:"counter"`
}

func (a *App) view(b *ledger.Book, q ledger.Query) viewDTO {
	v := b.View(q)
	if v.Rows == nil {
		v.Rows = []domain.Contribution{}
	}
	return viewDTO{
		Rows:           v.Rows,
		Count:          v.Count,
		Total:          v.Total,
		FormattedTotal: ledger.FormatTotal(v.Total, a.Currency),
		Counter:        b.Peek(),
	}
}

func (a *App) query(w http.ResponseWriter, r *http.Request) (ledger.Query, bool) {
	v := r.URL.Query()
	q, err := ledger.ParseQuery(v.Get("q"), v.Get("sort"), v.Get("dir"))
	if err != nil {
		a.fail(w, r, err, http.StatusBadRequest)
		return ledger.Query{}, false
	}
	return q, true
}

// openBook opens the partition named by the route. The caller must call
// release when ok is true.
func (a *App) openBook(w http.ResponseWriter, r *http.Request) (book *ledger.Book, release func(), ok bool) {
	p, err := domain.ParsePartition(chi.URLParam(r, "event"), chi.URLParam(r, "year"))
	if err != nil {
		a.fail(w, r, err, http.StatusBadRequest)
		return nil, nil, false
	}
	book, release, err = a.Ledger.Open(r.Context(), p)
	if err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return nil, nil, false
	}
	return book, release, true
}

// allow answers 403 unless granted. Checked before the partition is opened
// so a denied request never reaches the store.
func (a *App) allow(w http.ResponseWriter, r *http.Request, granted bool, what string) bool {
	if granted {
		return true
	}
	actor := a.actor(r)
	a.error(w, http.StatusForbidden, "forbidden", fmt.Sprintf("%s cannot %s", actor.Role.Label(), what))
	return false
}

// ListContributions returns the filtered, sorted view of a partition.
func (a *App) ListContributions(w http.ResponseWriter, r *http.Request) {
	q, ok := a.query(w, r)
	if !ok {
		return
	}
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	if err := book.Err(); err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return
	}
	a.json(w, http.StatusOK, a.view(book, q))
}

// StreamContributions pushes the view as Server-Sent Events: one snapshot
// event on connect and one after every change, or a final error event when
// the subscription fails.
func (a *App) StreamContributions(w http.ResponseWriter, r *http.Request) {
	q, ok := a.query(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()

	changed := make(chan struct{}, 1)
	remove := book.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	seq := 0
	send := func() bool {
		seq++
		if err := book.Err(); err != nil {
			a.logFailure(r, err)
			writeEvent(w, seq, "error", map[string]string{"code": "unavailable", "message": "Error fetching data"})
			flusher.Flush()
			return false
		}
		writeEvent(w, seq, "snapshot", a.view(book, q))
		flusher.Flush()
		return true
	}
	if !send() {
		return
	}

	heartbeat := time.NewTicker(a.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if !send() {
				return
			}
		case <-heartbeat.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, id int, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
}

// valuesRequest accepts a served row as a request body. encoding/json folds
// key case; Sno takes the integer "sno" of a row so it never reaches SNO.
type valuesRequest struct {
	domain.Values
	Sno json.RawMessage `json:"sno"`
}

func (a *App) decodeValues(w http.ResponseWriter, r *http.Request) (domain.Values, bool) {
	var req valuesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return domain.Values{}, false
	}
	return req.Values, true
}

func (a *App) CreateContribution(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, a.actor(r).Role.CanEdit(), "add contributions") {
		return
	}
	v, ok := a.decodeValues(w, r)
	if !ok {
		return
	}
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	c, err := book.Add(r.Context(), a.actor(r), v)
	if err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	a.json(w, http.StatusCreated, c)
}

func (a *App) UpdateContribution(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, a.actor(r).Role.CanEdit(), "edit contributions") {
		return
	}
	v, ok := a.decodeValues(w, r)
	if !ok {
		return
	}
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	c, err := book.Edit(r.Context(), a.actor(r), chi.URLParam(r, "id"), v)
	if err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	a.json(w, http.StatusOK, c)
}

func (a *App) DeleteContribution(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, a.actor(r).Role.CanDelete(), "delete contributions") {
		return
	}
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	if err := book.Delete(r.Context(), a.actor(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportContributions bulk loads the spreadsheet in the multipart field
// "file". A partial failure answers 502 with the aggregate counts.
func (a *App) ImportContributions(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, a.actor(r).Role.CanEdit(), "upload files") {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "file required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "could not read file")
		return
	}

	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	res, err := book.ImportFile(r.Context(), a.actor(r), header.Filename, data)
	if errors.Is(err, domain.ErrPartialImport) {
		a.logFailure(r, err)
		a.json(w, http.StatusBadGateway, map[string]any{
			"error":  map[string]string{"code": "partial_import", "message": err.Error()},
			"result": res,
		})
		return
	}
	if err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	a.json(w, http.StatusOK, res)
}

// ExportContributions downloads the partition as ?format=xlsx|csv.
func (a *App) ExportContributions(w http.ResponseWriter, r *http.Request) {
	f, err := sheet.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, r, err, http.StatusBadRequest)
		return
	}
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	if err := book.Err(); err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return
	}
	name, data, err := book.Export(f)
	if err != nil {
		a.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Counter reports the last sno known for the partition.
func (a *App) Counter(w http.ResponseWriter, r *http.Request) {
	book, release, ok := a.openBook(w, r)
	if !ok {
		return
	}
	defer release()
	a.json(w, http.StatusOK, map[string]any{"event": book.Partition().Label(), "counter": book.Peek()})
}
