package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongalloway/travel-booking-agents/model"
)

func TestParseTrip(t *testing.T) {
	cities := DefaultCatalog().Cities()
	tests := []struct {
		name     string
		request  string
		expected Trip
	}{
		{
			name:     "defaults",
			request:  "Book me a business trip",
			expected: Trip{Origin: "Seattle", Destination: "New York", LeadDays: 30, Nights: 3},
		},
		{
			name:     "origin destination nights",
			request:  "Plan a trip from Chicago to New York for 2 nights in 21 days",
			expected: Trip{Origin: "Chicago", Destination: "New York", LeadDays: 21, Nights: 2},
		},
		{
			name:     "multi word city and next week",
			request:  "I need to fly to san francisco next week, three nights",
			expected: Trip{Origin: "Seattle", Destination: "San Francisco", LeadDays: 7, Nights: 3},
		},
		{
			name:     "days out",
			request:  "Seattle to London, 5-night stay, leaving 10 days out",
			expected: Trip{Origin: "Seattle", Destination: "London", LeadDays: 10, Nights: 5},
		},
		{
			name:     "tomorrow",
			request:  "Boston tomorrow for 1 night",
			expected: Trip{Origin: "Seattle", Destination: "Boston", LeadDays: 1, Nights: 1},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual := ParseTrip(tc.request, cities)
			assert.Equal(t, tc.expected, *actual)
		})
	}
}

func TestRosterDefinitions(t *testing.T) {
	roster := Roster(nil, &Config{
		Fallbacks: map[string]string{Budget: "custom budget fallback"},
		Timeouts:  map[string]time.Duration{Booking: time.Second},
	})
	require.Len(t, roster, len(PipelineOrder))
	for i, w := range roster {
		assert.Equal(t, PipelineOrder[i], w.Name)
		assert.NoError(t, w.Validate())
		assert.NotEmpty(t, w.Description)
	}
	assert.Equal(t, "custom budget fallback", roster[2].Fallback)
	assert.Equal(t, time.Second, roster[4].Timeout)
	assert.NotSame(t, Roster(nil, nil)[0], Roster(nil, nil)[0])
}

func TestScriptedRunner(t *testing.T) {
	catalog := DefaultCatalog()
	runner := NewScripted(catalog, nil)
	roster := map[string]*model.Worker{}
	for _, w := range Roster(catalog, nil) {
		roster[w.Name] = w
	}

	tests := []struct {
		name      string
		worker    string
		request   string
		contains  []string
		violation bool
	}{
		{name: "research", worker: Research, request: "Seattle to New York for 3 nights", contains: []string{"Alaska AS24 $342", "Hudson Budget Inn"}},
		{name: "compliant policy", worker: Policy, request: "Seattle to New York for 3 nights", contains: []string{"compliant"}},
		{name: "late booking violates policy", worker: Policy, request: "Seattle to New York tomorrow", contains: []string{"non-compliant", "booked 1 days ahead"}, violation: true},
		{name: "hotel cap violation", worker: Policy, request: "Seattle to San Francisco", contains: []string{"exceeds the San Francisco cap"}, violation: true},
		{name: "budget", worker: Budget, request: "Seattle to New York for 3 nights", contains: []string{"$1225 total"}},
		{name: "optimizer normal", worker: Optimizer, request: "Seattle to New York", contains: []string{"already the lowest cost"}},
		{name: "optimizer violation", worker: Optimizer, request: "Seattle to New York tomorrow", contains: []string{"move departure to at least 14 days out"}},
		{name: "booking", worker: Booking, request: "Seattle to New York", contains: []string{"Booking confirmed", "Confirmation TRV-"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runner.Run(context.Background(), roster[tc.worker], model.ComposeContext(tc.request, "## Step 1: Research\n..."))
			require.NoError(t, err)
			for _, fragment := range tc.contains {
				assert.Contains(t, out, fragment)
			}
			lower := strings.ToLower(out)
			assert.Equal(t, tc.violation, strings.Contains(lower, "violation") || strings.Contains(lower, "non-compliant"))
		})
	}
}

func TestScriptedRunnerDeterministicConfirmation(t *testing.T) {
	runner := NewScripted(nil, nil)
	booking := Roster(nil, nil)[4]
	first, err := runner.Run(context.Background(), booking, "Request: Seattle to Chicago")
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), booking, "Request: Seattle to Chicago")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScriptedRunnerLatencyAndFailures(t *testing.T) {
	runner := NewScripted(nil, &Config{
		Latency:  map[string]time.Duration{Research: time.Minute},
		Failures: map[string]string{Budget: "rate service unavailable"},
	})
	roster := Roster(nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := runner.Run(ctx, roster[0], "Request: trip")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = runner.Run(context.Background(), roster[2], "Request: trip")
	assert.EqualError(t, err, "rate service unavailable")

	_, err = runner.Run(context.Background(), &model.Worker{Name: "Concierge", Fallback: "n/a"}, "Request: trip")
	assert.Error(t, err)
}

func TestToolsValidateArguments(t *testing.T) {
	tools := DefaultCatalog().Tools()
	_, err := tools[ToolCheckPolicy].Call(context.Background(), map[string]string{"leadDays": "x"})
	assert.Error(t, err)
	_, err = tools[ToolReserve].Call(context.Background(), map[string]string{})
	assert.Error(t, err)
	out, err := tools[ToolSearchFlights].Call(context.Background(), map[string]string{"from": "Chicago", "to": "Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, "no flights found from Chicago to Tokyo", out)
}

func TestTravelPolicyHotelCap(t *testing.T) {
	catalog := DefaultCatalog()
	var rules TravelPolicy = catalog.Policy
	assert.Equal(t, 14, rules.MinAdvanceDays)
	assert.Equal(t, 300.0, rules.HotelCap("New York"))
	assert.Equal(t, 275.0, rules.HotelCap("San Francisco"))
	assert.Equal(t, rules.DefaultHotelCap, rules.HotelCap("Atlantis"))

	roster := Roster(catalog, nil)
	require.Len(t, roster, len(PipelineOrder))
	assert.Equal(t, Policy, roster[1].Name)
}
