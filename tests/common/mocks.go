package common

import (
	"context"
	"sort"
	"sync"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// MemoryStorage is an in-memory StorageManager for service and handler tests.
type MemoryStorage struct {
	Statements *MemoryStatementStore
	Prices     *MemoryPriceStore
	PingErr    error
}

var _ interfaces.StorageManager = (*MemoryStorage)(nil)

// NewMemoryStorage returns empty in-memory stores.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Statements: &MemoryStatementStore{records: map[string]map[models.StatementKey]*models.FinancialStatement{}},
		Prices:     &MemoryPriceStore{bars: map[string]map[string]models.EODBar{}},
	}
}

func (m *MemoryStorage) StatementStore() interfaces.StatementStore { return m.Statements }
func (m *MemoryStorage) PriceStore() interfaces.PriceStore         { return m.Prices }
func (m *MemoryStorage) Ping(context.Context) error                { return m.PingErr }
func (m *MemoryStorage) Close() error                              { return nil }

// MemoryStatementStore keeps statements keyed by ticker and (type, period).
type MemoryStatementStore struct {
	mu      sync.Mutex
	records map[string]map[models.StatementKey]*models.FinancialStatement

	// Err, when set, is returned by every call
	Err error
	// Commits counts InsertStatements calls that created at least one record
	Commits int
}

func (s *MemoryStatementStore) ExistingKeys(_ context.Context, ticker string) (map[models.StatementKey]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	keys := make(map[models.StatementKey]bool)
	for k := range s.records[ticker] {
		keys[k] = true
	}
	return keys, nil
}

func (s *MemoryStatementStore) InsertStatements(_ context.Context, statements []*models.FinancialStatement) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	inserted := 0
	for _, st := range statements {
		byKey, ok := s.records[st.Ticker]
		if !ok {
			byKey = map[models.StatementKey]*models.FinancialStatement{}
			s.records[st.Ticker] = byKey
		}
		if _, exists := byKey[st.Key()]; exists {
			continue
		}
		copied := *st
		byKey[st.Key()] = &copied
		inserted++
	}
	if inserted > 0 {
		s.Commits++
	}
	return inserted, nil
}

func (s *MemoryStatementStore) LatestStatement(_ context.Context, ticker string, statementType models.StatementType) (*models.FinancialStatement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var latest *models.FinancialStatement
	for _, st := range s.records[ticker] {
		if st.StatementType != statementType {
			continue
		}
		if latest == nil || st.Period.After(latest.Period) {
			latest = st
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

// Count returns the number of stored statements for a ticker.
func (s *MemoryStatementStore) Count(ticker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[ticker])
}

// MemoryPriceStore keeps bars keyed by ticker and ISO date.
type MemoryPriceStore struct {
	mu   sync.Mutex
	bars map[string]map[string]models.EODBar

	// Err, when set, is returned by every call and nothing is written
	Err error
}

func (s *MemoryPriceStore) UpsertBars(_ context.Context, ticker string, bars []models.EODBar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	byDate, ok := s.bars[ticker]
	if !ok {
		byDate = map[string]models.EODBar{}
		s.bars[ticker] = byDate
	}
	inserted := 0
	for _, b := range bars {
		day := b.Date.Format("2006-01-02")
		if _, exists := byDate[day]; exists {
			continue
		}
		byDate[day] = b
		inserted++
	}
	return inserted, nil
}

func (s *MemoryPriceStore) GetBars(_ context.Context, ticker string) ([]models.EODBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.EODBar
	for _, b := range s.bars[ticker] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// MockEODHDClient returns canned provider data.
type MockEODHDClient struct {
	Bars          []models.EODBar
	Statements    []models.RawStatement
	MarketCap     float64
	Err           error
	MarketCapErr  error
	LastEODParams interfaces.EODParams
}

var _ interfaces.EODHDClient = (*MockEODHDClient)(nil)

func (m *MockEODHDClient) GetEOD(_ context.Context, _ string, opts ...interfaces.EODOption) (*models.EODResponse, error) {
	params := interfaces.EODParams{}
	for _, opt := range opts {
		opt(&params)
	}
	m.LastEODParams = params
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.EODResponse{Data: m.Bars}, nil
}

func (m *MockEODHDClient) GetFinancialStatements(_ context.Context, _ string) ([]models.RawStatement, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Statements, nil
}

func (m *MockEODHDClient) GetMarketCap(_ context.Context, _ string) (float64, error) {
	if m.MarketCapErr != nil {
		return 0, m.MarketCapErr
	}
	return m.MarketCap, nil
}

// MockCompletionClient replays scripted completions in order and records the prompts.
type MockCompletionClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
	Stops     [][]string
}

var _ interfaces.CompletionClient = (*MockCompletionClient)(nil)

func (m *MockCompletionClient) Complete(_ context.Context, prompt string, stop []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	m.Stops = append(m.Stops, stop)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "Final Answer: {}", nil
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

func (m *MockCompletionClient) Name() string { return "mock:test" }

// MockEarningsClient returns canned calendar rows.
type MockEarningsClient struct {
	Events      []models.EarningsEvent
	Err         error
	LastSymbol  string
	LastHorizon string
}

var _ interfaces.EarningsCalendarClient = (*MockEarningsClient)(nil)

func (m *MockEarningsClient) GetEarningsCalendar(_ context.Context, symbol, horizon string) ([]models.EarningsEvent, error) {
	m.LastSymbol = symbol
	m.LastHorizon = horizon
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Events, nil
}
