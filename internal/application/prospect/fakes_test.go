package prospect_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

// memStore is an in-memory ProspectStore. Writes made through a BatchTx are
// buffered and applied only when the batch callback returns nil.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	prospects map[int64]*domain.Prospect
	doneRows  map[int64]int
	batches   int
	insertErr error
	failOn    int
	// jobs, when set, is consulted by LockProcessing like the job row lock.
	jobs *memJobs
}

func newMemStore() *memStore {
	return &memStore{
		prospects: make(map[int64]*domain.Prospect),
		doneRows:  make(map[int64]int),
	}
}

func (s *memStore) seed(ownerID int64, email, first, last string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.prospects[s.nextID] = &domain.Prospect{
		ID:        s.nextID,
		OwnerID:   ownerID,
		Email:     email,
		FirstName: first,
		LastName:  last,
	}
	return s.nextID
}

func (s *memStore) WithinBatch(ctx context.Context, fn func(tx domain.BatchTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches++
	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *memStore) byEmail(ownerID int64, email string) *domain.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.prospects {
		if p.OwnerID == ownerID && p.Email == email {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prospects)
}

func (s *memStore) CountForFile(ctx context.Context, fileID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.prospects {
		if p.FileID != nil && *p.FileID == fileID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.prospects {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make([]domain.Prospect, 0)
	for _, p := range s.prospects {
		if p.OwnerID == ownerID {
			owned = append(owned, *p)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })

	if offset >= len(owned) {
		return []domain.Prospect{}, nil
	}
	end := min(offset+limit, len(owned))
	return owned[offset:end], nil
}

type memTx struct {
	store   *memStore
	updates []domain.ProspectUpdate
	inserts []domain.Prospect
	done    map[int64]int
}

func (tx *memTx) LockProcessing(ctx context.Context, fileID int64) error {
	if tx.store.jobs == nil {
		return nil
	}
	if tx.store.jobs.status(fileID) != domain.StatusProcessing {
		return domain.ErrJobNotProcessing
	}
	return nil
}

func (tx *memTx) FindByEmails(ctx context.Context, ownerID int64, emails []string) ([]domain.Prospect, error) {
	wanted := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		wanted[e] = struct{}{}
	}

	found := make([]domain.Prospect, 0)
	for _, p := range tx.store.prospects {
		if p.OwnerID != ownerID {
			continue
		}
		if _, ok := wanted[p.Email]; ok {
			found = append(found, *p)
		}
	}
	return found, nil
}

func (tx *memTx) UpdateProspects(ctx context.Context, updates []domain.ProspectUpdate) error {
	tx.updates = append(tx.updates, updates...)
	return nil
}

func (tx *memTx) InsertProspects(ctx context.Context, ownerID int64, records []domain.NewProspect) error {
	if tx.store.insertErr != nil && (tx.store.failOn == 0 || tx.store.failOn == tx.store.batches) {
		return tx.store.insertErr
	}
	for _, r := range records {
		fileID := r.FileID
		tx.inserts = append(tx.inserts, domain.Prospect{
			OwnerID:   ownerID,
			FileID:    &fileID,
			Email:     r.Email,
			FirstName: r.FirstName,
			LastName:  r.LastName,
		})
	}
	return nil
}

func (tx *memTx) IncrementDoneRows(ctx context.Context, fileID int64, delta int) error {
	if tx.done == nil {
		tx.done = make(map[int64]int)
	}
	tx.done[fileID] += delta
	return nil
}

func (tx *memTx) commit() {
	s := tx.store
	for _, u := range tx.updates {
		p := s.prospects[u.ID]
		fileID := u.FileID
		p.FirstName = u.FirstName
		p.LastName = u.LastName
		p.FileID = &fileID
	}
	for _, p := range tx.inserts {
		s.nextID++
		p.ID = s.nextID
		cp := p
		s.prospects[cp.ID] = &cp
	}
	for id, delta := range tx.done {
		s.doneRows[id] += delta
	}
}

// memJobs mirrors the conditional updates of the SQL repository.
type memJobs struct {
	mu         sync.Mutex
	nextID     int64
	jobs       map[int64]*domain.ImportJob
	now        func() time.Time
	created    int
	heartbeats int
	getErr     error
}

func newMemJobs() *memJobs {
	return &memJobs{
		jobs: make(map[int64]*domain.ImportJob),
		now:  time.Now,
	}
}

func (r *memJobs) Create(ctx context.Context, in domain.NewImportJob) (domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.created++
	job := &domain.ImportJob{
		ID:               r.nextID,
		OwnerID:          in.OwnerID,
		OriginalFileName: in.OriginalFileName,
		SavedFileName:    in.SavedFileName,
		TotalRows:        in.TotalRows,
		Status:           domain.StatusCreated,
		Options:          in.Options,
		CreatedAt:        r.now(),
	}
	r.jobs[job.ID] = job
	return *job, nil
}

func (r *memJobs) GetByID(ctx context.Context, id int64) (*domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrImportJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobs) transition(id int64, from, to domain.ImportJobStatus, apply func(j *domain.ImportJob)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != from {
		return false
	}
	job.Status = to
	if apply != nil {
		apply(job)
	}
	return true
}

func (r *memJobs) Claim(ctx context.Context, id int64) (bool, error) {
	now := r.now()
	return r.transition(id, domain.StatusCreated, domain.StatusProcessing, func(j *domain.ImportJob) {
		j.StartedAt = &now
		j.HeartbeatAt = &now
	}), nil
}

func (r *memJobs) Heartbeat(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.heartbeats++
	job, ok := r.jobs[id]
	if !ok || job.Status != domain.StatusProcessing {
		return domain.ErrJobNotProcessing
	}
	now := r.now()
	job.HeartbeatAt = &now
	return nil
}

func (r *memJobs) Finish(ctx context.Context, id int64) error {
	now := r.now()
	if !r.transition(id, domain.StatusProcessing, domain.StatusFinished, func(j *domain.ImportJob) { j.FinishedAt = &now }) {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *memJobs) Fail(ctx context.Context, id int64, reason string) error {
	now := r.now()
	mark := func(j *domain.ImportJob) {
		j.ErrorMessage = reason
		j.FinishedAt = &now
	}
	if r.transition(id, domain.StatusProcessing, domain.StatusFailed, mark) {
		return nil
	}
	if r.transition(id, domain.StatusCreated, domain.StatusFailed, mark) {
		return nil
	}
	return domain.ErrInvalidTransition
}

func (r *memJobs) ReapStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-staleAfter)
	var reaped int64
	for _, job := range r.jobs {
		if job.Status == domain.StatusProcessing && job.HeartbeatAt != nil && job.HeartbeatAt.Before(cutoff) {
			job.Status = domain.StatusFailed
			job.ErrorMessage = "stale: worker heartbeat lost"
			reaped++
		}
	}
	return reaped, nil
}

func (r *memJobs) ListUnclaimed(ctx context.Context, olderThan time.Duration, limit int) ([]domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	out := make([]domain.ImportJob, 0)
	for _, job := range r.jobs {
		if job.Status == domain.StatusCreated && job.CreatedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobs) status(id int64) domain.ImportJobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ""
	}
	return job.Status
}

func (r *memJobs) setDone(id int64, done int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].DoneRows = done
}

type memStorage struct {
	mu      sync.Mutex
	files   map[string]string
	saveErr error
	seq     int
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string]string)}
}

func (s *memStorage) Save(ctx context.Context, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	name := fmt.Sprintf("staged-%d.csv", s.seq)
	s.files[name] = string(data)
	return name, nil
}

func (s *memStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[name]
	if !ok {
		return nil, errors.New("staged file missing")
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (s *memStorage) remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []app.ImportTask
	err   error
}

func (d *recordingDispatcher) Submit(ctx context.Context, task app.ImportTask) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *recordingDispatcher) submitted() []app.ImportTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]app.ImportTask(nil), d.tasks...)
}

type countingCache struct {
	mu          sync.Mutex
	entries     map[int64]app.ProgressSnapshot
	loads       int
	invalidated []int64
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[int64]app.ProgressSnapshot)}
}

func (c *countingCache) GetOrLoad(ctx context.Context, fileID int64, load func(ctx context.Context) (app.ProgressSnapshot, error)) (app.ProgressSnapshot, error) {
	c.mu.Lock()
	if s, ok := c.entries[fileID]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := load(ctx)
	if err != nil {
		return app.ProgressSnapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	c.entries[fileID] = s
	return s, nil
}

func (c *countingCache) Invalidate(ctx context.Context, fileID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fileID)
	c.invalidated = append(c.invalidated, fileID)
}

func csvRows(n int, prefix string) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "%s%d@example.com,First%d,Last%d\n", prefix, i, i, i)
	}
	return b.String()
}

var fullMapping = domain.ColumnMapping{
	EmailIndex:     0,
	FirstNameIndex: 1,
	LastNameIndex:  2,
}
