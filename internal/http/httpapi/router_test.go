package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/access"
	"github.com/24981a0558-joel/manna-contribution/internal/adapter/memory"
	"github.com/24981a0558-joel/manna-contribution/internal/catalog"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/http/handlers"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
	"github.com/24981a0558-joel/manna-contribution/internal/middleware"
)

const secret = "test-secret"

type fakeVerifier map[string]domain.Identity

func (f fakeVerifier) Identity(ctx context.Context, token string) (domain.Identity, error) {
	id, ok := f[token]
	if !ok {
		return domain.Identity{}, errors.New("bad token")
	}
	return id, nil
}

type env struct {
	t      *testing.T
	st     *memory.Store
	users  *memory.Users
	svc    *ledger.Service
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	users := memory.NewUsers(domain.AuthorizedUser{Email: "clerk@church.org", Name: "Clerk", Role: domain.UserRoleEditor})
	svc := ledger.NewService(ledger.Stores{Contributions: st, Feed: st, Counters: st, Audit: st}, catalog.Default(), zerolog.Nop(), ledger.Options{})
	t.Cleanup(svc.Close)
	policy, err := access.NewPolicy("viewer", []string{"pastor@church.org"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	app := handlers.NewApp(zerolog.Nop(), svc, access.NewDirectory(users, zerolog.Nop()), access.NewResolver(users, policy, zerolog.Nop()), fakeVerifier{
		"google-pastor": {Email: "pastor@church.org", DisplayName: "Pastor"},
	})
	app.JWTSecret = secret
	app.Heartbeat = time.Hour
	return &env{t: t, st: st, users: users, svc: svc, router: NewRouter(app, Options{})}
}

func token(t *testing.T, email string) string {
	t.Helper()
	tok, err := middleware.SignJWT(secret, middleware.NewSession(domain.Identity{Email: email}, "", time.Now(), time.Hour))
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return tok
}

func (e *env) do(method, path, email string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+token(e.t, email))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) doJSON(method, path, email string, v any) *httptest.ResponseRecorder {
	e.t.Helper()
	var body io.Reader
	if v != nil {
		b, _ := json.Marshal(v)
		body = bytes.NewReader(b)
	}
	return e.do(method, path, email, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type viewBody struct {
	Rows []struct {
		ID   string `json:"id"`
		SNO  string `json:"SNO"`
		Sno  int64  `json:"sno"`
		Name string `json:"NAME"`
	} `json:"rows"`
	Count          int    `json:"count"`
	FormattedTotal string `json:"formattedTotal"`
	Counter        int64  `json:"counter"`
}

type errorBody struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

const (
	pastor  = "pastor@church.org"
	clerk   = "clerk@church.org"
	visitor = "visitor@church.org"
	book    = "/v1/events/christmas/2024"
)

func TestHealthAndAuth(t *testing.T) {
	e := newEnv(t)
	if rec := e.do(http.MethodGet, "/v1/healthz", "", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/v1/me", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without session = %d, want 401", rec.Code)
	}
	if rec := e.doJSON(http.MethodPost, "/v1/auth/google", "", map[string]string{"id_token": "forged"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged google token = %d, want 401", rec.Code)
	}

	rec := e.doJSON(http.MethodPost, "/v1/auth/google", "", map[string]string{"id_token": "google-pastor"})
	if rec.Code != http.StatusOK {
		t.Fatalf("auth = %d %s", rec.Code, rec.Body)
	}
	auth := decode[struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}](t, rec)
	if auth.User.Role != "admin" || auth.Token == "" {
		t.Fatalf("auth = %+v", auth)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	me := httptest.NewRecorder()
	e.router.ServeHTTP(me, req)
	if me.Code != http.StatusOK || !strings.Contains(me.Body.String(), `"manage_users":true`) {
		t.Fatalf("me = %d %s", me.Code, me.Body)
	}
}

func TestContributionLifecycle(t *testing.T) {
	e := newEnv(t)

	rec := e.doJSON(http.MethodPost, book+"/contributions", visitor, map[string]string{"NAME": "Grace", "AMOUNT": "100"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer add = %d, want 403", rec.Code)
	}
	if n := e.st.Watchers(domain.Partition{EventID: "christmas", Year: 2024}); n != 0 {
		t.Fatalf("denied request opened the partition (%d watchers)", n)
	}

	rec = e.doJSON(http.MethodPost, book+"/contributions", clerk, map[string]string{"NAME": "Grace", "AMOUNT": "1,200.50"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rec.Code, rec.Body)
	}
	added := decode[struct {
		ID  string `json:"id"`
		SNO string `json:"SNO"`
		Sno int64  `json:"sno"`
	}](t, rec)
	if added.SNO != "1" || added.Sno != 1 {
		t.Fatalf("added SNO = %q, want 1", added.SNO)
	}

	rec = e.do(http.MethodGet, book+"/contributions?sort=amount&dir=desc", visitor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}
	view := decode[viewBody](t, rec)
	if view.Count != 1 || view.Rows[0].Name != "Grace" || view.FormattedTotal != "₹1,200.50" || view.Counter != 1 {
		t.Fatalf("view = %+v", view)
	}

	rec = e.doJSON(http.MethodPut, book+"/contributions/"+added.ID, clerk, map[string]string{"NAME": "Grace M", "AMOUNT": "50"})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit = %d %s", rec.Code, rec.Body)
	}
	if rec := e.doJSON(http.MethodPut, book+"/contributions/missing", clerk, map[string]string{"NAME": "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("edit missing = %d, want 404", rec.Code)
	}

	if rec := e.do(http.MethodDelete, book+"/contributions/"+added.ID, clerk, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("editor delete = %d, want 403", rec.Code)
	}
	if rec := e.do(http.MethodDelete, book+"/contributions/"+added.ID, pastor, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete = %d", rec.Code)
	}

	rec = e.do(http.MethodGet, book+"/counter", visitor, nil, "")
	if !strings.Contains(rec.Body.String(), `"counter":1`) {
		t.Fatalf("counter = %s", rec.Body)
	}
}

func TestServedRowCanBeSentBack(t *testing.T) {
	e := newEnv(t)
	if rec := e.doJSON(http.MethodPost, book+"/contributions", clerk, map[string]string{"SNO": "4", "NAME": "Grace", "AMOUNT": "100"}); rec.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rec.Code, rec.Body)
	}
	listed := decode[struct {
		Rows []json.RawMessage `json:"rows"`
	}](t, e.do(http.MethodGet, book+"/contributions", clerk, nil, ""))
	if len(listed.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(listed.Rows))
	}
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(listed.Rows[0], &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}

	rec := e.do(http.MethodPut, book+"/contributions/"+row.ID, clerk, bytes.NewReader(listed.Rows[0]), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("put served row = %d %s", rec.Code, rec.Body)
	}
	saved := decode[struct {
		SNO  string `json:"SNO"`
		Sno  int64  `json:"sno"`
		Name string `json:"NAME"`
	}](t, rec)
	if saved.SNO != "4" || saved.Sno != 4 || saved.Name != "Grace" {
		t.Fatalf("saved = %+v", saved)
	}
}

func TestPartitionValidation(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		path string
		want int
	}{
		{path: "/v1/events/picnic/2024/contributions", want: http.StatusNotFound},
		{path: "/v1/events/christmas/1999/contributions", want: http.StatusBadRequest},
		{path: "/v1/events/christmas/twenty/contributions", want: http.StatusBadRequest},
		{path: book + "/contributions?sort=remarks", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := e.do(http.MethodGet, tc.path, visitor, nil, ""); rec.Code != tc.want {
			t.Fatalf("GET %s = %d, want %d", tc.path, rec.Code, tc.want)
		}
	}
}

func upload(t *testing.T, name, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImportAndExport(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(http.MethodGet, book+"/contributions/export?format=csv", visitor, nil, ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty export = %d, want 422", rec.Code)
	}

	body, ct := upload(t, "gifts.csv", "SNO,NAME,AMOUNT\n,Grace,100\n7,John,200\n,Mary,300\n")
	rec := e.do(http.MethodPost, book+"/contributions/import", clerk, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body)
	}
	res := decode[ledger.ImportResult](t, rec)
	if res.Rows != 3 || res.Counter != 7 {
		t.Fatalf("import result = %+v", res)
	}

	body, ct = upload(t, "old.xls", "\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1rest")
	if rec := e.do(http.MethodPost, book+"/contributions/import", clerk, body, ct); rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("xls import = %d, want 415", rec.Code)
	}

	rec = e.do(http.MethodGet, book+"/contributions/export?format=csv", visitor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Christmas") || !strings.HasSuffix(cd, `.csv"`) && !strings.HasSuffix(cd, ".csv") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if out := rec.Body.String(); !strings.HasPrefix(out, "SNO,DATE,NAME,PHONE,AMOUNT") || !strings.Contains(out, "Mary") {
		t.Fatalf("export body = %q", out)
	}
}

func TestPartialImportReportsCounts(t *testing.T) {
	e := newEnv(t)
	e.st.SetFaults(memory.Faults{Batch: func(seq int) error {
		if seq == 1 {
			return errors.New("deadline exceeded")
		}
		return nil
	}})
	var csv strings.Builder
	csv.WriteString("NAME,AMOUNT\n")
	for i := 0; i < 600; i++ {
		csv.WriteString("Member,10\n")
	}
	body, ct := upload(t, "big.csv", csv.String())
	rec := e.do(http.MethodPost, book+"/contributions/import", clerk, body, ct)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("partial import = %d, want 502", rec.Code)
	}
	got := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Result ledger.ImportResult `json:"result"`
	}](t, rec)
	if got.Error.Code != "partial_import" || got.Result.Batches != 2 || got.Result.FailedBatches != 1 {
		t.Fatalf("partial import body = %+v", got)
	}
}

func TestAdminSurfaces(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(http.MethodGet, "/v1/audit", clerk, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("editor audit = %d, want 403", rec.Code)
	}
	e.doJSON(http.MethodPost, book+"/contributions", clerk, map[string]string{"NAME": "Grace"})
	e.svc.Close()
	rec := e.do(http.MethodGet, "/v1/audit?action=add", pastor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit = %d %s", rec.Code, rec.Body)
	}
	items := decode[struct {
		Items []domain.AuditEntry `json:"items"`
	}](t, rec).Items
	if len(items) != 1 || items[0].Action != domain.AuditAdd || items[0].UserEmail != clerk {
		t.Fatalf("audit items = %+v", items)
	}
	if rec := e.do(http.MethodGet, "/v1/audit?action=purge", pastor, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action = %d, want 400", rec.Code)
	}

	rec = e.doJSON(http.MethodPut, "/v1/users", pastor, map[string]string{"email": "Deacon@Church.org", "role": "editor"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put user = %d %s", rec.Code, rec.Body)
	}
	if rec := e.doJSON(http.MethodPut, "/v1/users", clerk, map[string]string{"email": "x@church.org", "role": "admin"}); rec.Code != http.StatusForbidden {
		t.Fatalf("editor put user = %d, want 403", rec.Code)
	}
	rec = e.do(http.MethodDelete, "/v1/users/pastor@church,org", pastor, nil, "")
	if rec.Code != http.StatusConflict || decode[errorBody](t, rec).Error.Code != "self_deletion" {
		t.Fatalf("self delete = %d %s", rec.Code, rec.Body)
	}
	if rec := e.do(http.MethodDelete, "/v1/users/deacon@church,org", pastor, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete user = %d", rec.Code)
	}
	rec = e.do(http.MethodGet, "/v1/users", pastor, nil, "")
	if strings.Contains(rec.Body.String(), "deacon") {
		t.Fatalf("users after delete = %s", rec.Body)
	}
}

func TestDashboard(t *testing.T) {
	e := newEnv(t)
	e.doJSON(http.MethodPost, book+"/contributions", clerk, map[string]string{"NAME": "Grace", "AMOUNT": "100"})
	e.doJSON(http.MethodPost, "/v1/events/easter/2024/contributions", clerk, map[string]string{"NAME": "John", "AMOUNT": "250"})

	rec := e.do(http.MethodGet, "/v1/dashboard?year=2024", visitor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d %s", rec.Code, rec.Body)
	}
	d := decode[struct {
		Members        int    `json:"totalMembers"`
		FormattedTotal string `json:"formattedTotal"`
	}](t, rec)
	if d.Members != 2 || d.FormattedTotal != "₹350.00" {
		t.Fatalf("dashboard = %+v", d)
	}
	if rec := e.do(http.MethodGet, "/v1/dashboard?year=1990", visitor, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("dashboard 1990 = %d, want 400", rec.Code)
	}
}

type sse struct {
	event string
	data  string
}

func readEvent(t *testing.T, r *bufio.Reader) sse {
	t.Helper()
	var ev sse
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.event != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamPushesSnapshots(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+book+"/contributions/stream?q=grace&access_token="+token(t, visitor), nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	first := readEvent(t, r)
	if first.event != "snapshot" || !strings.Contains(first.data, `"count":0`) {
		t.Fatalf("first event = %+v", first)
	}

	e.doJSON(http.MethodPost, book+"/contributions", clerk, map[string]string{"NAME": "Grace", "AMOUNT": "100"})
	next := readEvent(t, r)
	var view viewBody
	if err := json.Unmarshal([]byte(next.data), &view); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if next.event != "snapshot" || view.Count != 1 || view.Rows[0].Name != "Grace" {
		t.Fatalf("second event = %+v", next)
	}

	e.st.FailWatchers(domain.Partition{EventID: "christmas", Year: 2024}, errors.New("permission denied"))
	if last := readEvent(t, r); last.event != "error" {
		t.Fatalf("after failure event = %+v, want error", last)
	}
}
