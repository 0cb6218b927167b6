package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"gv-go/internal/gv"
)

// Default credentials accepted by FakeAPI.
const (
	FakeEmail    = "ana@example.org"
	FakePassword = "secret"
	FakeToken    = "test-token"
)

// RecordedRequest is what FakeAPI saw of a request.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	Form   map[string]string
	Files  map[string]string // form field -> uploaded file name
}

// Gate holds matching requests until Release is called.
type Gate struct {
	// Entered receives one value each time a request reaches the gate.
	Entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Release lets held and future requests through.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

type fakeFailure struct {
	status int // 0 drops the connection
	body   string
	times  int // 0 = until cleared
}

// FakeAPI is an in-process implementation of the platform's REST API,
// routed with chi and served by httptest. Routes are keyed by method and
// chi pattern without the /api prefix, e.g. "POST /posts/{id}/vote".
type FakeAPI struct {
	server *httptest.Server
	clock  *StubClock

	mu       sync.Mutex
	user     gv.User
	perPage  int
	nextID   int64
	failures map[string]*fakeFailure
	gates    map[string]*Gate
	calls    map[string]int
	last     map[string]RecordedRequest

	donations     *fakeTable[gv.Donation]
	requests      *fakeTable[gv.Request]
	verifications *fakeTable[gv.Verification]
	notifications *fakeTable[gv.Notification]
	posts         *fakeTable[gv.Post]
	comments      map[int64]*fakeTable[gv.Comment]
	votes         map[int64]gv.VoteChoice
	donateResult  func(d gv.Donation, amount int64) gv.Donation
}

// NewFakeAPI starts a fake server. It is closed when the test completes.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		clock:    FixedClock(),
		user:     gv.User{ID: 1, Name: "Ana", Email: FakeEmail, Verified: true},
		perPage:  10,
		nextID:   1000,
		failures: make(map[string]*fakeFailure),
		gates:    make(map[string]*Gate),
		calls:    make(map[string]int),
		last:     make(map[string]RecordedRequest),

		donations:     newFakeTable[gv.Donation]([]string{"title", "goal_amount"}, map[string]any{"status": "open", "current_amount": 0}),
		requests:      newFakeTable[gv.Request]([]string{"title"}, map[string]any{"status": "open"}),
		verifications: newFakeTable[gv.Verification]([]string{"document_type"}, map[string]any{"status": "pending"}),
		notifications: newFakeTable[gv.Notification]([]string{"message"}, nil),
		posts:         newFakeTable[gv.Post]([]string{"content"}, map[string]any{"upvotes": 0, "downvotes": 0, "comments_count": 0}),
		comments:      make(map[int64]*fakeTable[gv.Comment]),
		votes:         make(map[int64]gv.VoteChoice),
	}

	f.server = httptest.NewServer(f.router())
	t.Cleanup(f.Close)
	return f
}

// URL returns the API base url to configure clients with.
func (f *FakeAPI) URL() string { return f.server.URL + "/api" }

// Close shuts the server down. Later requests fail with a network error.
func (f *FakeAPI) Close() {
	f.server.CloseClientConnections()
	f.server.Close()
}

// SetVerified changes whether the signed-in user may donate.
func (f *FakeAPI) SetVerified(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user.Verified = v
}

// SetPerPage changes the page size of every list endpoint.
func (f *FakeAPI) SetPerPage(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perPage = n
}

// Fail makes the next times requests to route answer status with message.
// times 0 keeps failing until ClearFailures.
func (f *FakeAPI) Fail(route string, status int, message string, times int) {
	b, _ := json.Marshal(map[string]string{"message": message})
	f.FailRaw(route, status, string(b), times)
}

// FailRaw is Fail with a verbatim response body.
func (f *FakeAPI) FailRaw(route string, status int, body string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = &fakeFailure{status: status, body: body, times: times}
}

// Drop makes the next times requests to route lose their connection.
func (f *FakeAPI) Drop(route string, times int) {
	f.FailRaw(route, 0, "", times)
}

// SetDonateResult makes the donate endpoint store and answer fn's result
// instead of adding the amount, like a server that folds in concurrent gifts.
func (f *FakeAPI) SetDonateResult(fn func(d gv.Donation, amount int64) gv.Donation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donateResult = fn
}

// ClearFailures removes every injected failure.
func (f *FakeAPI) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]*fakeFailure)
}

// Hold installs a gate on route. Requests block until the gate is released.
func (f *FakeAPI) Hold(route string) *Gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &Gate{Entered: make(chan struct{}, 64), release: make(chan struct{})}
	f.gates[route] = g
	return g
}

// Calls returns how many requests reached route.
func (f *FakeAPI) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// LastRequest returns the most recent request to route.
func (f *FakeAPI) LastRequest(route string) (RecordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.last[route]
	return r, ok
}

// SeedDonations appends donations in order.
func (f *FakeAPI) SeedDonations(ds ...gv.Donation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range ds {
		f.donations.append(d.ID, d)
	}
}

// SeedRequests appends help requests in order.
func (f *FakeAPI) SeedRequests(rs ...gv.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rs {
		f.requests.append(r.ID, r)
	}
}

// SeedVerifications appends verification submissions in order.
func (f *FakeAPI) SeedVerifications(vs ...gv.Verification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vs {
		f.verifications.append(v.ID, v)
	}
}

// SeedNotifications appends notifications in order.
func (f *FakeAPI) SeedNotifications(ns ...gv.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range ns {
		f.notifications.append(n.ID, n)
	}
}

// SeedPosts appends posts in order. A post's UserVote becomes the signed-in
// user's recorded vote.
func (f *FakeAPI) SeedPosts(ps ...gv.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range ps {
		f.votes[p.ID] = p.UserVote
		p.UserVote = gv.VoteNone
		f.posts.append(p.ID, p)
	}
}

// PrependPost inserts p at the head of the feed, shifting later pages.
func (f *FakeAPI) PrependPost(p gv.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes[p.ID] = p.UserVote
	p.UserVote = gv.VoteNone
	f.posts.prepend(p.ID, p)
}

// SeedComments appends comments to post postID.
func (f *FakeAPI) SeedComments(postID int64, cs ...gv.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tbl := f.commentTable(postID)
	for _, c := range cs {
		c.PostID = postID
		tbl.append(c.ID, c)
	}
}

// RemoveDonation deletes a donation server-side.
func (f *FakeAPI) RemoveDonation(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donations.remove(id)
}

// RemovePost deletes a post server-side.
func (f *FakeAPI) RemovePost(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts.remove(id)
}

// Donation returns the server's copy of donation id.
func (f *FakeAPI) Donation(id int64) (gv.Donation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.donations.get(id)
}

// Post returns the server's copy of post id, including the user's vote.
func (f *FakeAPI) Post(id int64) (gv.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts.get(id)
	p.UserVote = f.votes[id]
	return p, ok
}

// Notification returns the server's copy of notification id.
func (f *FakeAPI) Notification(id int64) (gv.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifications.get(id)
}

// CommentCount returns how many comments post postID has server-side.
func (f *FakeAPI) CommentCount(postID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commentTable(postID).order)
}

func (f *FakeAPI) commentTable(postID int64) *fakeTable[gv.Comment] {
	tbl, ok := f.comments[postID]
	if !ok {
		tbl = newFakeTable[gv.Comment]([]string{"content"}, nil)
		f.comments[postID] = tbl
	}
	return tbl
}

func (f *FakeAPI) newID() int64 {
	f.nextID++
	return f.nextID
}

func (f *FakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		f.route(r, http.MethodPost, "/auth/login", false, f.login)

		mountTable(f, r, "/donations", f.donations, false)
		f.route(r, http.MethodPost, "/donations/{id}/donate", true, f.donate)

		mountTable(f, r, "/requests", f.requests, false)
		mountTable(f, r, "/verifications", f.verifications, true)

		mountTable(f, r, "/notifications", f.notifications, true)
		f.route(r, http.MethodPatch, "/notifications/{id}/read", true, f.markRead)

		f.route(r, http.MethodGet, "/posts", false, f.listPosts)
		f.route(r, http.MethodGet, "/posts/{id}", false, f.getPost)
		mountWrites(f, r, "/posts", f.posts)
		f.route(r, http.MethodPost, "/posts/{id}/vote", true, f.vote)
		f.route(r, http.MethodDelete, "/posts/{id}/vote", true, f.unvote)
		f.route(r, http.MethodGet, "/posts/{id}/comments", false, f.listComments)
		f.route(r, http.MethodPost, "/posts/{id}/comments", true, f.addComment)
	})
	return r
}

// route registers h on pattern, wrapped with recording, gates, injected
// failures and, when auth is set, bearer token checks.
func (f *FakeAPI) route(r chi.Router, method, pattern string, auth bool, h http.HandlerFunc) {
	key := method + " " + pattern
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		rec := RecordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
			Header: req.Header.Clone(),
			Body:   body,
		}
		if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
			rec.Form, rec.Files = parseMultipart(req, body)
		}

		f.mu.Lock()
		f.calls[key]++
		f.last[key] = rec
		gate := f.gates[key]
		var fail *fakeFailure
		if ff, ok := f.failures[key]; ok {
			fail = ff
			if ff.times > 0 {
				ff.times--
				if ff.times == 0 {
					delete(f.failures, key)
				}
			}
		}
		f.mu.Unlock()

		if gate != nil {
			gate.Entered <- struct{}{}
			<-gate.release
		}

		if fail != nil {
			if fail.status == 0 {
				dropConnection(w)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			io.WriteString(w, fail.body)
			return
		}

		if auth && req.Header.Get("Authorization") != "Bearer "+FakeToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		h(w, req)
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("fake api: response writer cannot be hijacked")
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		conn.Close()
	}
}

func parseMultipart(req *http.Request, body []byte) (map[string]string, map[string]string) {
	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(body))
	if err := clone.ParseMultipartForm(10 << 20); err != nil {
		return nil, nil
	}
	form := make(map[string]string)
	for k, v := range clone.MultipartForm.Value {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	files := make(map[string]string)
	for k, v := range clone.MultipartForm.File {
		if len(v) > 0 {
			files[k] = v[0].Filename
		}
	}
	return form, files
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeItem(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, map[string]any{"data": v})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
}

func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
}

func pathID(req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	return id, err == nil
}

func pageParam(req *http.Request) int {
	page, err := strconv.Atoi(req.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// requestFields decodes a JSON or multipart body into a field map.
// Multipart values that look like integers become numbers.
func requestFields(req *http.Request) (map[string]any, error) {
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		if err := req.ParseMultipartForm(10 << 20); err != nil {
			return nil, err
		}
		fields := make(map[string]any)
		for k, v := range req.MultipartForm.Value {
			if len(v) == 0 {
				continue
			}
			if n, err := strconv.ParseInt(v[0], 10, 64); err == nil {
				fields[k] = n
			} else {
				fields[k] = v[0]
			}
		}
		for k, v := range req.MultipartForm.File {
			if len(v) > 0 {
				fields[k+"_url"] = "/storage/" + v[0].Filename
			}
		}
		return fields, nil
	}

	fields := make(map[string]any)
	if req.ContentLength == 0 {
		return fields, nil
	}
	if err := json.NewDecoder(req.Body).Decode(&fields); err != nil && err != io.EOF {
		return nil, err
	}
	return fields, nil
}

func (f *FakeAPI) login(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if body.Email != FakeEmail || body.Password != FakePassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials."})
		return
	}
	f.mu.Lock()
	user := f.user
	f.mu.Unlock()
	writeItem(w, http.StatusOK, map[string]any{"token": FakeToken, "user": user})
}

func (f *FakeAPI) donate(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(req)
	if !ok {
		writeNotFound(w)
		return
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Amount <= 0 {
		writeValidation(w, map[string][]string{"amount": {"The amount must be at least 1."}})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.user.Verified {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "only verified users can donate"})
		return
	}
	d, ok := f.donations.get(id)
	if !ok {
		writeNotFound(w)
		return
	}
	if f.donateResult != nil {
		d = f.donateResult(d, body.Amount)
	} else {
		d.CurrentAmount += body.Amount
	}
	f.donations.set(id, d)
	writeItem(w, http.StatusOK, d)
}

func (f *FakeAPI) markRead(w http.ResponseWriter, req *http.Request) {
	id, _ := pathID(req)

	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.notifications.get(id)
	if !ok {
		writeNotFound(w)
		return
	}
	if n.ReadAt == nil {
		now := f.clock.Now()
		n.ReadAt = &now
		f.notifications.set(id, n)
	}
	writeItem(w, http.StatusOK, n)
}

func (f *FakeAPI) withVote(p gv.Post) gv.Post {
	p.UserVote = f.votes[p.ID]
	return p
}

func (f *FakeAPI) listPosts(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, meta := f.posts.page(pageParam(req), f.perPage, nil)
	for i := range items {
		items[i] = f.withVote(items[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "meta": meta})
}

func (f *FakeAPI) getPost(w http.ResponseWriter, req *http.Request) {
	id, _ := pathID(req)

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts.get(id)
	if !ok {
		writeNotFound(w)
		return
	}
	writeItem(w, http.StatusOK, f.withVote(p))
}

func (f *FakeAPI) setVote(w http.ResponseWriter, id int64, choice gv.VoteChoice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts.get(id)
	if !ok {
		writeNotFound(w)
		return
	}
	switch f.votes[id] {
	case gv.VoteUp:
		p.Upvotes--
	case gv.VoteDown:
		p.Downvotes--
	}
	switch choice {
	case gv.VoteUp:
		p.Upvotes++
	case gv.VoteDown:
		p.Downvotes++
	}
	f.votes[id] = choice
	f.posts.set(id, p)
	writeItem(w, http.StatusOK, map[string]int{"upvotes": p.Upvotes, "downvotes": p.Downvotes})
}

func (f *FakeAPI) vote(w http.ResponseWriter, req *http.Request) {
	id, _ := pathID(req)
	var body struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeValidation(w, map[string][]string{"type": {"The type field is required."}})
		return
	}
	choice := gv.VoteChoice(body.Type)
	if choice != gv.VoteUp && choice != gv.VoteDown {
		writeValidation(w, map[string][]string{"type": {"The selected type is invalid."}})
		return
	}
	f.setVote(w, id, choice)
}

func (f *FakeAPI) unvote(w http.ResponseWriter, req *http.Request) {
	id, _ := pathID(req)
	f.setVote(w, id, gv.VoteNone)
}

func (f *FakeAPI) listComments(w http.ResponseWriter, req *http.Request) {
	id, _ := pathID(req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.posts.get(id); !ok {
		writeNotFound(w)
		return
	}
	items, meta := f.commentTable(id).page(pageParam(req), f.perPage, nil)
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "meta": meta})
}

func (f *FakeAPI) addComment(w http.ResponseWriter, req *http.Request) {
	id, _ := pathID(req)
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || strings.TrimSpace(body.Content) == "" {
		writeValidation(w, map[string][]string{"content": {"The content field is required."}})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts.get(id)
	if !ok {
		writeNotFound(w)
		return
	}
	c := gv.Comment{
		ID:        f.newID(),
		PostID:    id,
		UserID:    f.user.ID,
		Content:   body.Content,
		CreatedAt: f.clock.Now(),
	}
	f.commentTable(id).append(c.ID, c)
	p.CommentsCount++
	f.posts.set(id, p)
	writeItem(w, http.StatusCreated, c)
}

// mountTable registers list, show and the write routes of a generic table.
func mountTable[T gv.Entity](f *FakeAPI, r chi.Router, base string, tbl *fakeTable[T], readAuth bool) {
	f.route(r, http.MethodGet, base, readAuth, func(w http.ResponseWriter, req *http.Request) {
		filters := make(map[string]string)
		for k, v := range req.URL.Query() {
			if k != "page" && len(v) > 0 {
				filters[k] = v[0]
			}
		}
		f.mu.Lock()
		items, meta := tbl.page(pageParam(req), f.perPage, filters)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": items, "meta": meta})
	})
	f.route(r, http.MethodGet, base+"/{id}", readAuth, func(w http.ResponseWriter, req *http.Request) {
		id, _ := pathID(req)
		f.mu.Lock()
		e, ok := tbl.get(id)
		f.mu.Unlock()
		if !ok {
			writeNotFound(w)
			return
		}
		writeItem(w, http.StatusOK, e)
	})
	mountWrites(f, r, base, tbl)
}

// mountWrites registers create, update (PATCH and multipart POST with
// _method=PATCH) and delete.
func mountWrites[T gv.Entity](f *FakeAPI, r chi.Router, base string, tbl *fakeTable[T]) {
	f.route(r, http.MethodPost, base, true, func(w http.ResponseWriter, req *http.Request) {
		fields, err := requestFields(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if missing := tbl.missing(fields); len(missing) > 0 {
			writeValidation(w, missing)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		fields["user_id"] = f.user.ID
		e, err := tbl.create(f.newID(), f.clock.Now().Format("2006-01-02T15:04:05Z07:00"), fields)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		writeItem(w, http.StatusCreated, e)
	})

	update := func(w http.ResponseWriter, req *http.Request, fields map[string]any) {
		id, _ := pathID(req)
		delete(fields, "_method")
		f.mu.Lock()
		defer f.mu.Unlock()
		e, ok, err := tbl.update(id, fields)
		if !ok {
			writeNotFound(w)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		writeItem(w, http.StatusOK, e)
	}

	f.route(r, http.MethodPatch, base+"/{id}", true, func(w http.ResponseWriter, req *http.Request) {
		fields, err := requestFields(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		update(w, req, fields)
	})
	f.route(r, http.MethodPost, base+"/{id}", true, func(w http.ResponseWriter, req *http.Request) {
		fields, err := requestFields(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if m, _ := fields["_method"].(string); !strings.EqualFold(m, http.MethodPatch) {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed."})
			return
		}
		update(w, req, fields)
	})
	f.route(r, http.MethodDelete, base+"/{id}", true, func(w http.ResponseWriter, req *http.Request) {
		id, _ := pathID(req)
		f.mu.Lock()
		ok := tbl.remove(id)
		f.mu.Unlock()
		if !ok {
			writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
}

// fakeTable is an ordered id-keyed table. Callers hold FakeAPI.mu.
type fakeTable[T gv.Entity] struct {
	order    []int64
	items    map[int64]T
	required []string
	defaults map[string]any
}

func newFakeTable[T gv.Entity](required []string, defaults map[string]any) *fakeTable[T] {
	return &fakeTable[T]{items: make(map[int64]T), required: required, defaults: defaults}
}

func (t *fakeTable[T]) append(id int64, e T) {
	if _, ok := t.items[id]; !ok {
		t.order = append(t.order, id)
	}
	t.items[id] = e
}

func (t *fakeTable[T]) prepend(id int64, e T) {
	if _, ok := t.items[id]; !ok {
		t.order = append([]int64{id}, t.order...)
	}
	t.items[id] = e
}

func (t *fakeTable[T]) get(id int64) (T, bool) {
	e, ok := t.items[id]
	return e, ok
}

func (t *fakeTable[T]) set(id int64, e T) {
	t.items[id] = e
}

func (t *fakeTable[T]) remove(id int64) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *fakeTable[T]) missing(fields map[string]any) map[string][]string {
	out := make(map[string][]string)
	for _, k := range t.required {
		v, ok := fields[k]
		if s, isStr := v.(string); !ok || v == nil || (isStr && strings.TrimSpace(s) == "") {
			out[k] = []string{fmt.Sprintf("The %s field is required.", strings.ReplaceAll(k, "_", " "))}
		}
	}
	return out
}

// page returns page n of the entities matching filters, newest insertions
// first as stored, with the pagination meta the platform sends.
func (t *fakeTable[T]) page(n, perPage int, filters map[string]string) ([]T, gv.Cursor) {
	var matched []T
	for _, id := range t.order {
		e := t.items[id]
		if matches(e, filters) {
			matched = append(matched, e)
		}
	}
	total := len(matched)
	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	start := (n - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	items := append([]T{}, matched[start:end]...)
	return items, gv.Cursor{CurrentPage: n, LastPage: last, PerPage: perPage, Total: total}
}

func matches[T any](e T, filters map[string]string) bool {
	if len(filters) == 0 {
		return true
	}
	m, err := toFields(e)
	if err != nil {
		return false
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fmt.Sprint(m[k]) != filters[k] {
			return false
		}
	}
	return true
}

func (t *fakeTable[T]) create(id int64, createdAt string, fields map[string]any) (T, error) {
	m := make(map[string]any, len(fields)+len(t.defaults)+2)
	for k, v := range t.defaults {
		m[k] = v
	}
	for k, v := range fields {
		m[k] = v
	}
	m["id"] = id
	m["created_at"] = createdAt

	e, err := fromFields[T](m)
	if err != nil {
		return e, err
	}
	t.prepend(id, e)
	return e, nil
}

func (t *fakeTable[T]) update(id int64, fields map[string]any) (T, bool, error) {
	cur, ok := t.items[id]
	if !ok {
		return cur, false, nil
	}
	m, err := toFields(cur)
	if err != nil {
		return cur, true, err
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		m[k] = v
	}
	e, err := fromFields[T](m)
	if err != nil {
		return cur, true, err
	}
	t.items[id] = e
	return e, true, nil
}

func toFields[T any](e T) (map[string]any, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromFields[T any](m map[string]any) (T, error) {
	var e T
	b, err := json.Marshal(m)
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(b, &e)
	return e, err
}
