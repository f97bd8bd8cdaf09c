package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockQuoteGenerator is a mock implementation of ports.QuoteGenerator
type MockQuoteGenerator struct {
	mock.Mock
}

func (m *MockQuoteGenerator) GenerateQuote(ctx context.Context, req ports.QuoteRequest) (ports.QuoteResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ports.QuoteResult), args.Error(1)
}

type stubFactory struct {
	quotes *MockQuoteGenerator
}

func (s stubFactory) Quotes() ports.QuoteGenerator         { return s.quotes }
func (s stubFactory) Provider() string                     { return "stub" }
func (s stubFactory) IsHealthy(ctx context.Context) error { return nil }

func TestQuoteUseCase_Generate(t *testing.T) {
	want := ports.QuoteResult{Quote: "Dear HealthWell team, ...", Provider: "stub", GeneratedAt: time.Now()}

	tests := []struct {
		name      string
		form      QuoteForm
		setupMock func(*MockQuoteGenerator)
		wantErr   error
	}{
		{
			name: "success",
			form: QuoteForm{ClientName: " HealthWell ", MRR: 75000, Industry: "Healthcare"},
			setupMock: func(m *MockQuoteGenerator) {
				m.On("GenerateQuote", mock.Anything, ports.QuoteRequest{ClientName: "HealthWell", MRR: 75000, Industry: "Healthcare"}).
					Return(want, nil).Once()
			},
		},
		{
			name:      "invalid input never reaches the provider",
			form:      QuoteForm{ClientName: "HealthWell", MRR: 0, Industry: "Healthcare"},
			setupMock: func(m *MockQuoteGenerator) {},
		},
		{
			name: "unclassified provider error",
			form: QuoteForm{ClientName: "HealthWell", MRR: 75000, Industry: "Healthcare"},
			setupMock: func(m *MockQuoteGenerator) {
				m.On("GenerateQuote", mock.Anything, mock.Anything).Return(ports.QuoteResult{}, errors.New("connection reset")).Once()
			},
			wantErr: domain.ErrGenerationFailed,
		},
		{
			name: "malformed output passes through",
			form: QuoteForm{ClientName: "HealthWell", MRR: 75000, Industry: "Healthcare"},
			setupMock: func(m *MockQuoteGenerator) {
				m.On("GenerateQuote", mock.Anything, mock.Anything).Return(ports.QuoteResult{}, domain.ErrMalformedOutput).Once()
			},
			wantErr: domain.ErrMalformedOutput,
		},
		{
			name: "blank quote",
			form: QuoteForm{ClientName: "HealthWell", MRR: 75000, Industry: "Healthcare"},
			setupMock: func(m *MockQuoteGenerator) {
				m.On("GenerateQuote", mock.Anything, mock.Anything).Return(ports.QuoteResult{Quote: "  "}, nil).Once()
			},
			wantErr: domain.ErrMalformedOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockQuoteGenerator{}
			tt.setupMock(gen)
			uc := NewQuoteUseCase(stubFactory{quotes: gen}, logger.NewNop())

			result, err := uc.Generate(context.Background(), tt.form)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
			case tt.form.MRR <= 0:
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "MRR must be a positive number.", verr.Fields["mrr"])
				gen.AssertNotCalled(t, "GenerateQuote", mock.Anything, mock.Anything)
			default:
				require.NoError(t, err)
				assert.Equal(t, want.Quote, result.Quote)
			}
			gen.AssertExpectations(t)
		})
	}
}

func TestQuoteUseCase_NoProvider(t *testing.T) {
	uc := NewQuoteUseCase(nil, logger.NewNop())

	_, err := uc.Generate(context.Background(), QuoteForm{ClientName: "a", MRR: 1, Industry: "b"})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}
