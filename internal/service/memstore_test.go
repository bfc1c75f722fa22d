package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/repository"
)

// memDB is an in-memory stand-in for the three tables, including the unique
// (client_id, program_id) index and the participant counter.
type memDB struct {
	mu          sync.Mutex
	clients     map[string]*models.Client
	programs    map[string]*models.HealthProgram
	enrollments map[string]*models.Enrollment
	order       []string
}

func newMemDB() *memDB {
	return &memDB{
		clients:     make(map[string]*models.Client),
		programs:    make(map[string]*models.HealthProgram),
		enrollments: make(map[string]*models.Enrollment),
	}
}

type memClients struct{ db *memDB }
type memPrograms struct{ db *memDB }
type memEnrollments struct{ db *memDB }

func (m memClients) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.Client, 0, len(m.db.clients))
	for _, c := range m.db.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, len(out), nil
}

func (m memClients) Search(ctx context.Context, term string, limit int) ([]models.Client, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	term = strings.ToLower(term)
	var out []models.Client
	for _, c := range m.db.clients {
		haystack := strings.ToLower(strings.Join([]string{c.FirstName, c.LastName, c.Email, c.ContactNumber}, " "))
		if strings.Contains(haystack, term) && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m memClients) FindByID(ctx context.Context, id string) (*models.Client, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.clients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	cp.EnrolledPrograms = append(pq.StringArray{}, c.EnrolledPrograms...)
	return &cp, nil
}

func (m memClients) FindByIDs(ctx context.Context, ids []string) ([]models.Client, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Client
	for _, id := range ids {
		if c, ok := m.db.clients[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m memClients) Create(ctx context.Context, client *models.Client) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.clients {
		if c.Email == client.Email {
			return repository.ErrDuplicate
		}
	}
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.EnrolledPrograms = pq.StringArray{}
	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt
	cp := *client
	m.db.clients[client.ID] = &cp
	return nil
}

func (m memClients) Update(ctx context.Context, client *models.Client) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	existing, ok := m.db.clients[client.ID]
	if !ok {
		return sql.ErrNoRows
	}
	refs := existing.EnrolledPrograms
	cp := *client
	cp.EnrolledPrograms = refs
	m.db.clients[client.ID] = &cp
	return nil
}

func (m memClients) Delete(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.clients[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.clients, id)
	return nil
}

func (m memClients) LinkEnrollment(ctx context.Context, clientID, enrollmentID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.clients[clientID]
	if !ok {
		return false, nil
	}
	if !c.HasEnrollment(enrollmentID) {
		c.EnrolledPrograms = append(c.EnrolledPrograms, enrollmentID)
	}
	return true, nil
}

func (m memClients) UnlinkEnrollment(ctx context.Context, clientID, enrollmentID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.clients[clientID]
	if !ok {
		return nil
	}
	kept := pq.StringArray{}
	for _, id := range c.EnrolledPrograms {
		if id != enrollmentID {
			kept = append(kept, id)
		}
	}
	c.EnrolledPrograms = kept
	return nil
}

func (m memPrograms) List(ctx context.Context, filter models.ProgramFilter) ([]models.HealthProgram, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.HealthProgram, 0, len(m.db.programs))
	for _, p := range m.db.programs {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m memPrograms) FindByID(ctx context.Context, id string) (*models.HealthProgram, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m memPrograms) FindByIDs(ctx context.Context, ids []string) ([]models.HealthProgram, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.HealthProgram
	for _, id := range ids {
		if p, ok := m.db.programs[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m memPrograms) Create(ctx context.Context, program *models.HealthProgram) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.programs {
		if p.Name == program.Name {
			return repository.ErrDuplicate
		}
	}
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	program.CurrentParticipants = 0
	cp := *program
	m.db.programs[program.ID] = &cp
	return nil
}

func (m memPrograms) Update(ctx context.Context, program *models.HealthProgram) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	existing, ok := m.db.programs[program.ID]
	if !ok {
		return sql.ErrNoRows
	}
	cp := *program
	cp.CurrentParticipants = existing.CurrentParticipants
	m.db.programs[program.ID] = &cp
	return nil
}

func (m memPrograms) Delete(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.programs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.programs, id)
	return nil
}

func (m memPrograms) ReserveSlot(ctx context.Context, id string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.programs[id]
	if !ok {
		return false, nil
	}
	if p.MaxParticipants > 0 && p.CurrentParticipants >= p.MaxParticipants {
		return false, nil
	}
	p.CurrentParticipants++
	return true, nil
}

func (m memPrograms) ReleaseSlot(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.programs[id]; ok && p.CurrentParticipants > 0 {
		p.CurrentParticipants--
	}
	return nil
}

func (m memEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Enrollment
	for i := len(m.db.order) - 1; i >= 0; i-- {
		e, ok := m.db.enrollments[m.db.order[i]]
		if !ok {
			continue
		}
		if filter.ClientID != "" && e.ClientID != filter.ClientID {
			continue
		}
		if filter.ProgramID != "" && e.ProgramID != filter.ProgramID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m memEnrollments) ListByClient(ctx context.Context, clientID string) ([]models.Enrollment, error) {
	out, _, err := m.List(ctx, models.EnrollmentFilter{ClientID: clientID})
	return out, err
}

func (m memEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m memEnrollments) ExistsForPair(ctx context.Context, clientID, programID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.pairExists(clientID, programID), nil
}

func (m memEnrollments) pairExists(clientID, programID string) bool {
	for _, e := range m.db.enrollments {
		if e.ClientID == clientID && e.ProgramID == programID {
			return true
		}
	}
	return false
}

func (m memEnrollments) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.pairExists(enrollment.ClientID, enrollment.ProgramID) {
		return repository.ErrDuplicate
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.CreatedAt = time.Now().UTC()
	enrollment.UpdatedAt = enrollment.CreatedAt
	cp := *enrollment
	m.db.enrollments[enrollment.ID] = &cp
	m.db.order = append(m.db.order, enrollment.ID)
	return nil
}

func (m memEnrollments) Update(ctx context.Context, enrollment *models.Enrollment, expected models.EnrollmentStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	existing, ok := m.db.enrollments[enrollment.ID]
	if !ok || existing.Status != expected {
		return sql.ErrNoRows
	}
	existing.Status = enrollment.Status
	existing.Notes = enrollment.Notes
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m memEnrollments) Delete(ctx context.Context, id string) (*models.Enrollment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.db.enrollments, id)
	return e, nil
}

func (m memEnrollments) DeleteByClient(ctx context.Context, clientID string) ([]models.Enrollment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var removed []models.Enrollment
	for id, e := range m.db.enrollments {
		if e.ClientID == clientID {
			removed = append(removed, *e)
			delete(m.db.enrollments, id)
		}
	}
	return removed, nil
}

// memAnalytics computes dashboard figures from memDB.
type memAnalytics struct{ db *memDB }

func (m memAnalytics) CountClients(ctx context.Context) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return len(m.db.clients), nil
}

func (m memAnalytics) CountPrograms(ctx context.Context) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return len(m.db.programs), nil
}

func (m memAnalytics) CountEnrollments(ctx context.Context) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return len(m.db.enrollments), nil
}

func (m memAnalytics) EnrollmentsPerProgram(ctx context.Context) ([]models.ProgramEnrollmentCount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.db.enrollments {
		counts[e.ProgramID]++
	}
	var out []models.ProgramEnrollmentCount
	for id, n := range counts {
		p, ok := m.db.programs[id]
		if !ok {
			continue
		}
		out = append(out, models.ProgramEnrollmentCount{ProgramID: id, ProgramName: p.Name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProgramName < out[j].ProgramName })
	return out, nil
}

func (m memAnalytics) DailyEnrollments(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.db.enrollments {
		if !e.EnrollmentDate.Before(since) {
			counts[e.EnrollmentDate.UTC().Format("2006-01-02")]++
		}
	}
	var out []models.DailyCount
	for day, n := range counts {
		out = append(out, models.DailyCount{Date: day, Count: n})
	}
	return out, nil
}

func (m memAnalytics) GenderDistribution(ctx context.Context) ([]models.LabelCount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	counts := make(map[string]int)
	for _, c := range m.db.clients {
		counts[string(c.Gender)]++
	}
	var out []models.LabelCount
	for label, n := range counts {
		out = append(out, models.LabelCount{Label: label, Count: n})
	}
	return out, nil
}

func (m memAnalytics) StatusBreakdown(ctx context.Context) ([]models.LabelCount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.db.enrollments {
		counts[string(e.Status)]++
	}
	var out []models.LabelCount
	for label, n := range counts {
		out = append(out, models.LabelCount{Label: label, Count: n})
	}
	return out, nil
}

// testServices wires every service over one memDB.
type testServices struct {
	db          *memDB
	clients     *ClientService
	programs    *ProgramService
	enrollments *EnrollmentService
	integrity   *IntegrityService
	analytics   *AnalyticsService
}

func newTestServices() *testServices {
	db := newMemDB()
	clients := memClients{db}
	programs := memPrograms{db}
	enrollments := memEnrollments{db}

	integrity := NewIntegrityService(clients, enrollments, programs, nil)
	enrollmentSvc := NewEnrollmentService(enrollments, clients, programs, integrity, nil, nil)
	return &testServices{
		db:          db,
		clients:     NewClientService(clients, enrollmentSvc, integrity, nil, nil),
		programs:    NewProgramService(programs, nil, nil),
		enrollments: enrollmentSvc,
		integrity:   integrity,
		analytics:   NewAnalyticsService(memAnalytics{db}, nil, nil, 7),
	}
}
