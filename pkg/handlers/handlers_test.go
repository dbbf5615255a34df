package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/auth"
	"github.com/arnavshah/route-planner-api/pkg/config"
	"github.com/arnavshah/route-planner-api/pkg/database"
	"github.com/arnavshah/route-planner-api/pkg/jobs"
	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/arnavshah/route-planner-api/pkg/routes"
	"github.com/arnavshah/route-planner-api/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testServer struct {
	h          *Handler
	r          *gin.Engine
	token      string
	receiptDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("API_MASTER_SECRET", "device-secret")

	receiptDir := t.TempDir()
	cfg := &config.Config{
		DataPath:       ":memory:",
		TemplateSlots:  10,
		Location:       time.UTC,
		ReceiptDir:     receiptDir,
		ReceiptBaseURL: "/receipts",
		ReceiptMaxEdge: 1280,
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	h, err := NewHandler(context.Background(), db, cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	r := gin.New()
	h.Register(r)

	token, err := auth.CreateToken("office")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	return &testServer{h: h, r: r, token: token, receiptDir: receiptDir}
}

func (s *testServer) request(t *testing.T, method, path string, body any, authz string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", "Bearer "+authz)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.request(t, method, path, body, s.token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

type directory struct {
	dana, lee models.Employee
	acme      models.Client
	mainSt    models.Branch
	elmSt     models.Branch
}

func (s *testServer) seed(t *testing.T) directory {
	t.Helper()
	var d directory

	w := s.do(t, http.MethodPost, "/api/employees", gin.H{"name": "Dana"})
	expectStatus(t, w, http.StatusCreated)
	decode(t, w, &d.dana)
	w = s.do(t, http.MethodPost, "/api/employees", gin.H{"name": "Lee"})
	expectStatus(t, w, http.StatusCreated)
	decode(t, w, &d.lee)

	w = s.do(t, http.MethodPost, "/api/clients", gin.H{"name": "Acme"})
	expectStatus(t, w, http.StatusCreated)
	decode(t, w, &d.acme)

	w = s.do(t, http.MethodPost, "/api/clients/"+d.acme.ID.String()+"/branches", gin.H{"name": "MainSt", "address": "1 Main St"})
	expectStatus(t, w, http.StatusCreated)
	decode(t, w, &d.mainSt)
	w = s.do(t, http.MethodPost, "/api/clients/"+d.acme.ID.String()+"/branches", gin.H{"name": "ElmSt"})
	expectStatus(t, w, http.StatusCreated)
	decode(t, w, &d.elmSt)
	return d
}

func (s *testServer) stage(t *testing.T, slot string, emp models.Employee, client models.Client, clock string, branches ...models.Branch) *httptest.ResponseRecorder {
	t.Helper()
	ids := make([]uuid.UUID, len(branches))
	for i, b := range branches {
		ids[i] = b.ID
	}
	return s.do(t, http.MethodPost, "/api/templates/"+slot+"/pending", gin.H{
		"employee_id": emp.ID,
		"client_id":   client.ID,
		"branch_ids":  ids,
		"time":        clock,
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func (s *testServer) complete(t *testing.T, jobID uuid.UUID, key string, receipt []byte, note string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if note != "" {
		mw.WriteField("note", note)
	}
	if receipt != nil {
		fw, err := mw.CreateFormFile("receipt", "receipt.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(receipt)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/field/jobs/"+jobID.String()+"/complete", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+key)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	if w := s.request(t, http.MethodGet, "/api/templates", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
	if w := s.request(t, http.MethodGet, "/api/templates", nil, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with bad token, got %d", w.Code)
	}
	if w := s.request(t, http.MethodGet, "/field/jobs", nil, s.token); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected office token rejected on field routes, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	t.Setenv("ADMIN_USERNAME", "office")
	t.Setenv("ADMIN_PASSWORD", "s3cret-pass")
	if err := auth.EnsureAdminExists(s.h.DB); err != nil {
		t.Fatalf("EnsureAdminExists: %v", err)
	}

	w := s.request(t, http.MethodPost, "/admin/login", gin.H{"username": "office", "password": "wrong"}, "")
	expectStatus(t, w, http.StatusUnauthorized)

	w = s.request(t, http.MethodPost, "/admin/login", gin.H{"username": "office", "password": "s3cret-pass"}, "")
	expectStatus(t, w, http.StatusOK)
	var res struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &res)
	if w := s.request(t, http.MethodGet, "/api/templates", nil, res.AccessToken); w.Code != http.StatusOK {
		t.Errorf("Expected login token accepted, got %d", w.Code)
	}
}

func TestTemplateToCompletedJob(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(t)

	w := s.stage(t, "3", d.dana, d.acme, "09:00", d.mainSt)
	expectStatus(t, w, http.StatusOK)
	var staged routes.StageResult
	decode(t, w, &staged)
	if len(staged.Added) != 1 || staged.NextTime != "09:05" {
		t.Fatalf("Unexpected stage result %+v", staged)
	}

	w = s.do(t, http.MethodPost, "/api/templates/3/commit", nil)
	expectStatus(t, w, http.StatusOK)
	var committed struct {
		Template models.Template `json:"template"`
	}
	decode(t, w, &committed)
	if committed.Template.ID == nil || len(committed.Template.Stops) != 1 {
		t.Fatalf("Expected persisted template with one stop, got %+v", committed.Template)
	}
	stop := committed.Template.Stops[0]
	if stop.EmployeeName != "Dana" || stop.ClientName != "Acme" || stop.BranchName != "MainSt" {
		t.Errorf("Expected denormalized names, got %+v", stop)
	}

	w = s.do(t, http.MethodPut, "/api/assignments/2024-06-10", gin.H{"template_slot": 3})
	expectStatus(t, w, http.StatusOK)
	var assigned scheduler.Result
	decode(t, w, &assigned)
	if len(assigned.Jobs) != 1 {
		t.Fatalf("Expected one job, got %d", len(assigned.Jobs))
	}
	job := assigned.Jobs[0]
	if !job.ScheduledAt.Equal(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)) || job.Status != models.JobStatusPending {
		t.Errorf("Unexpected job %+v", job)
	}

	w = s.do(t, http.MethodGet, "/api/jobs?from=2024-06-10", nil)
	expectStatus(t, w, http.StatusOK)
	var listed struct {
		Jobs []models.Job `json:"jobs"`
	}
	decode(t, w, &listed)
	if len(listed.Jobs) != 1 || listed.Jobs[0].ID != job.ID {
		t.Fatalf("Expected the job listed, got %+v", listed.Jobs)
	}

	key := auth.GenerateDeviceKey(d.dana.ID)
	w = s.complete(t, job.ID, key, pngBytes(t), "all good")
	expectStatus(t, w, http.StatusOK)
	var done jobs.CompleteResult
	decode(t, w, &done)
	if done.Job.Status != models.JobStatusCompleted || done.Job.CompletedAt == nil {
		t.Fatalf("Expected completed job, got %+v", done.Job)
	}
	if !done.ReceiptStored || done.Job.ReceiptURL == nil || !strings.HasPrefix(*done.Job.ReceiptURL, "/receipts/") {
		t.Fatalf("Expected receipt reference, got %+v", done.Job)
	}
	name := strings.TrimPrefix(*done.Job.ReceiptURL, "/receipts/")
	if _, err := os.Stat(filepath.Join(s.receiptDir, name)); err != nil {
		t.Errorf("Expected receipt file on disk: %v", err)
	}
	if len(done.Jobs) != 1 {
		t.Errorf("Expected Dana's refreshed list, got %d", len(done.Jobs))
	}

	w = s.request(t, http.MethodGet, *done.Job.ReceiptURL, nil, "")
	expectStatus(t, w, http.StatusOK)

	w = s.complete(t, job.ID, key, nil, "")
	expectStatus(t, w, http.StatusConflict)

	w = s.request(t, http.MethodGet, "/field/jobs?date=2024-06-10", nil, key)
	expectStatus(t, w, http.StatusOK)
	var mine struct {
		Jobs []models.Job `json:"jobs"`
	}
	decode(t, w, &mine)
	if len(mine.Jobs) != 1 || mine.Jobs[0].Note == nil || *mine.Jobs[0].Note != "all good" {
		t.Errorf("Expected completed job with note, got %+v", mine.Jobs)
	}
}

func TestStageErrors(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(t)

	expectStatus(t, s.stage(t, "1", d.dana, d.acme, "09:00", d.mainSt), http.StatusOK)
	expectStatus(t, s.stage(t, "1", d.dana, d.acme, "09:00", d.mainSt), http.StatusConflict)
	expectStatus(t, s.stage(t, "1", d.dana, d.acme, "9am", d.elmSt), http.StatusBadRequest)
	expectStatus(t, s.stage(t, "11", d.dana, d.acme, "09:00", d.mainSt), http.StatusBadRequest)
	expectStatus(t, s.stage(t, "x", d.dana, d.acme, "09:00", d.mainSt), http.StatusBadRequest)

	w := s.do(t, http.MethodPatch, "/api/employees/"+d.lee.ID.String(), gin.H{"active": false})
	expectStatus(t, w, http.StatusOK)
	expectStatus(t, s.stage(t, "1", d.lee, d.acme, "10:00", d.mainSt), http.StatusBadRequest)

	w = s.do(t, http.MethodGet, "/api/employees?active=true", nil)
	var emps struct {
		Employees []models.Employee `json:"employees"`
	}
	decode(t, w, &emps)
	if len(emps.Employees) != 1 || emps.Employees[0].Name != "Dana" {
		t.Errorf("Expected only Dana active, got %+v", emps.Employees)
	}

	w = s.do(t, http.MethodDelete, "/api/templates/1/pending", nil)
	expectStatus(t, w, http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/templates/1/commit", nil), http.StatusBadRequest)
}

func TestEditRemoveMove(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(t)

	expectStatus(t, s.stage(t, "1", d.dana, d.acme, "09:00", d.mainSt, d.elmSt), http.StatusOK)
	w := s.do(t, http.MethodPost, "/api/templates/1/commit", nil)
	expectStatus(t, w, http.StatusOK)
	var tpl struct {
		Template models.Template `json:"template"`
	}
	decode(t, w, &tpl)
	keys := []models.StopKey{tpl.Template.Stops[0].Key(), tpl.Template.Stops[1].Key()}

	w = s.do(t, http.MethodPost, "/api/templates/1/reassign", gin.H{"keys": keys, "employee_id": d.lee.ID})
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &tpl)
	for _, st := range tpl.Template.Stops {
		if st.EmployeeName != "Lee" {
			t.Errorf("Expected stop reassigned, got %+v", st)
		}
	}

	first := tpl.Template.Stops[0]
	w = s.do(t, http.MethodPut, "/api/templates/1/stops", gin.H{"key": first.Key(), "time": "07:30"})
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &tpl)
	if tpl.Template.Stops[0].Time != "07:30" {
		t.Errorf("Expected edited stop first, got %+v", tpl.Template.Stops)
	}

	moveKey := tpl.Template.Stops[0].Key()
	w = s.do(t, http.MethodPost, "/api/templates/1/move", gin.H{"target": 2, "keys": []models.StopKey{moveKey}})
	expectStatus(t, w, http.StatusOK)
	var moved routes.MoveResult
	decode(t, w, &moved)
	if len(moved.Source.Stops) != 1 || len(moved.Target.Stops) != 1 {
		t.Fatalf("Expected one stop per slot, got %+v", moved)
	}
	expectStatus(t, s.do(t, http.MethodPost, "/api/templates/2/move", gin.H{"target": 2, "keys": []models.StopKey{moveKey}}), http.StatusBadRequest)

	remaining := moved.Source.Stops[0].Key()
	w = s.request(t, http.MethodDelete, "/api/templates/1/stops?key="+url.QueryEscape(string(remaining)), nil, s.token)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &tpl)
	if len(tpl.Template.Stops) != 0 {
		t.Errorf("Expected slot 1 empty, got %+v", tpl.Template.Stops)
	}
	expectStatus(t, s.request(t, http.MethodDelete, "/api/templates/1/stops?key="+url.QueryEscape(string(remaining)), nil, s.token), http.StatusNotFound)

	w = s.do(t, http.MethodGet, "/api/templates?refresh=1", nil)
	expectStatus(t, w, http.StatusOK)
	var all struct {
		Templates []models.Template `json:"templates"`
	}
	decode(t, w, &all)
	if len(all.Templates) != 10 || len(all.Templates[1].Stops) != 1 || all.Templates[0].ID == nil {
		t.Errorf("Expected reload to keep the emptied slot 1 row and slot 2 stop, got %+v", all.Templates[:2])
	}
}

func TestAssignWithDeletedBranch(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(t)

	expectStatus(t, s.stage(t, "4", d.dana, d.acme, "09:00", d.mainSt, d.elmSt), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/templates/4/commit", nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/branches/"+d.elmSt.ID.String(), nil), http.StatusOK)

	w := s.do(t, http.MethodGet, "/api/templates/4/validate?date=2024-06-11", nil)
	expectStatus(t, w, http.StatusOK)
	var plan struct {
		Valid   bool          `json:"valid"`
		Jobs    int           `json:"jobs"`
		Dropped []models.Stop `json:"dropped"`
	}
	decode(t, w, &plan)
	if !plan.Valid || plan.Jobs != 1 || len(plan.Dropped) != 1 || plan.Dropped[0].BranchName != "ElmSt" {
		t.Fatalf("Unexpected plan %+v", plan)
	}

	w = s.do(t, http.MethodPut, "/api/assignments/2024-06-11", gin.H{"template_slot": 4})
	expectStatus(t, w, http.StatusOK)
	var res scheduler.Result
	decode(t, w, &res)
	if len(res.Jobs) != 1 || len(res.Dropped) != 1 {
		t.Errorf("Expected one job and one dropped stop, got %+v", res)
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/api/branches/"+d.mainSt.ID.String(), nil), http.StatusOK)
	w = s.do(t, http.MethodPut, "/api/assignments/2024-06-11", gin.H{"template_slot": 4})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodGet, "/api/jobs?from=2024-06-11&to=2024-06-11", nil)
	var listed struct {
		Jobs []models.Job `json:"jobs"`
	}
	decode(t, w, &listed)
	if len(listed.Jobs) != 1 {
		t.Errorf("Expected the earlier jobs kept after a rejected assign, got %d", len(listed.Jobs))
	}

	w = s.do(t, http.MethodGet, "/api/templates/5/validate", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &plan)
	if plan.Valid {
		t.Errorf("Expected empty slot invalid")
	}
}

func TestUnassign(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(t)

	expectStatus(t, s.stage(t, "1", d.dana, d.acme, "09:00", d.mainSt), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/templates/1/commit", nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPut, "/api/assignments/2024-06-10", gin.H{"template_slot": 1}), http.StatusOK)

	w := s.do(t, http.MethodGet, "/api/assignments", nil)
	var list struct {
		Assignments map[string]int `json:"assignments"`
	}
	decode(t, w, &list)
	if list.Assignments["2024-06-10"] != 1 {
		t.Fatalf("Expected 2024-06-10 assigned to slot 1, got %v", list.Assignments)
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/api/assignments/2024-06-10", nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/assignments/2024-06-10", nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/assignments/June-10", nil), http.StatusBadRequest)

	w = s.do(t, http.MethodGet, "/api/jobs?from=2024-06-10", nil)
	var jobsRes struct {
		Jobs []models.Job `json:"jobs"`
	}
	decode(t, w, &jobsRes)
	if len(jobsRes.Jobs) != 0 {
		t.Errorf("Expected jobs removed, got %d", len(jobsRes.Jobs))
	}
}

func TestFieldAccess(t *testing.T) {
	s := newTestServer(t)
	d := s.seed(t)

	expectStatus(t, s.stage(t, "1", d.dana, d.acme, "09:00", d.mainSt), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/templates/1/commit", nil), http.StatusOK)
	w := s.do(t, http.MethodPut, "/api/assignments/2024-06-10", gin.H{"template_slot": 1})
	var res scheduler.Result
	decode(t, w, &res)

	w = s.do(t, http.MethodPost, "/api/employees/"+d.lee.ID.String()+"/device-key", nil)
	expectStatus(t, w, http.StatusOK)
	var issued struct {
		Key string `json:"key"`
	}
	decode(t, w, &issued)

	expectStatus(t, s.complete(t, res.Jobs[0].ID, issued.Key, nil, ""), http.StatusForbidden)
	expectStatus(t, s.complete(t, res.Jobs[0].ID, "not-a-key", nil, ""), http.StatusUnauthorized)
	expectStatus(t, s.complete(t, uuid.New(), auth.GenerateDeviceKey(d.dana.ID), nil, ""), http.StatusNotFound)
	expectStatus(t, s.complete(t, res.Jobs[0].ID, auth.GenerateDeviceKey(uuid.New()), nil, ""), http.StatusForbidden)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/jobs/"+res.Jobs[0].ID.String(), nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/jobs/"+res.Jobs[0].ID.String(), nil), http.StatusNotFound)
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	expectStatus(t, s.do(t, http.MethodGet, "/api/events?kind=volunteers", nil), http.StatusBadRequest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?kind=employees&access_token="+s.token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	events := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "event:") {
				events <- strings.TrimPrefix(line, "event:")
			}
		}
		close(events)
	}()

	if ev := <-events; ev != "ready" {
		t.Fatalf("Expected ready event first, got %q", ev)
	}
	expectStatus(t, s.do(t, http.MethodPost, "/api/employees", gin.H{"name": "Kim"}), http.StatusCreated)

	select {
	case ev := <-events:
		if ev != "changed" {
			t.Errorf("Expected changed event, got %q", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Expected changed event after employee write")
	}
}
