package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/policy"
	"github.com/jongalloway/travel-booking-agents/service/executor"
)

// Scripted is a deterministic executor.Runner that answers with the example
// travel tables instead of free-form reasoning.
type Scripted struct {
	catalog *Catalog
	config  *Config
}

// NewScripted creates a scripted runner.
func NewScripted(catalog *Catalog, config *Config) *Scripted {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if config == nil {
		config = &Config{}
	}
	return &Scripted{catalog: catalog, config: config}
}

// Run produces the worker output for the given context.
func (s *Scripted) Run(ctx context.Context, w *model.Worker, input string) (string, error) {
	if delay := s.config.Latency[w.Name]; delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
	if msg, ok := s.config.Failures[w.Name]; ok {
		return "", errors.New(msg)
	}

	request := model.RequestOf(input)
	trip := ParseTrip(request, s.catalog.Cities())
	session := &session{ctx: ctx, catalog: s.catalog, worker: w, trip: trip, request: request}
	switch w.Name {
	case Research:
		return session.research()
	case Policy:
		return session.policy()
	case Budget:
		return session.budget()
	case Optimizer:
		return session.optimize()
	case Booking:
		return session.book()
	}
	return "", fmt.Errorf("no script for worker %s", w.Name)
}

type session struct {
	ctx     context.Context
	catalog *Catalog
	worker  *model.Worker
	trip    *Trip
	request string
}

func (s *session) call(tool string, args map[string]string) (string, error) {
	t := s.worker.Tool(tool)
	if t == nil {
		return "", fmt.Errorf("worker %s has no tool %s", s.worker.Name, tool)
	}
	if err := policy.FromContext(s.ctx).Check(s.ctx, s.worker.Name, tool, args); err != nil {
		return "", err
	}
	out, err := t.Call(s.ctx, args)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", tool, err)
	}
	return out, nil
}

// offers returns the cheapest flight fare and hotel rate, 0 when none.
func (s *session) offers() (fare, nightly float64, flight, hotel string) {
	if flights := s.catalog.FlightsFor(s.trip.Origin, s.trip.Destination); len(flights) > 0 {
		fare, flight = flights[0].Fare, flights[0].Airline+" "+flights[0].Number
	}
	if hotels := s.catalog.HotelsIn(s.trip.Destination); len(hotels) > 0 {
		nightly, hotel = hotels[0].Nightly, hotels[0].Name
	}
	return fare, nightly, flight, hotel
}

func (s *session) checkPolicy(fare, nightly float64) (string, error) {
	return s.call(ToolCheckPolicy, map[string]string{
		"city":     s.trip.Destination,
		"leadDays": fmt.Sprint(s.trip.LeadDays),
		"nightly":  fmt.Sprintf("%.0f", nightly),
		"fare":     fmt.Sprintf("%.0f", fare),
	})
}

func (s *session) research() (string, error) {
	flights, err := s.call(ToolSearchFlights, map[string]string{"from": s.trip.Origin, "to": s.trip.Destination})
	if err != nil {
		return "", err
	}
	hotels, err := s.call(ToolSearchHotels, map[string]string{"city": s.trip.Destination})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Trip: %s.\nFlights: %s.\nHotels: %s.", s.trip, flights, hotels), nil
}

func (s *session) policy() (string, error) {
	fare, nightly, _, hotel := s.offers()
	verdict, err := s.checkPolicy(fare, nightly)
	if err != nil {
		return "", err
	}
	if verdict == "compliant" {
		return fmt.Sprintf("Policy review: compliant. %s at $%.0f/night and a fare of $%.0f fit the travel policy; departure is %d days out.",
			hotel, nightly, fare, s.trip.LeadDays), nil
	}
	return fmt.Sprintf("Policy review: non-compliant. Found %s.", verdict), nil
}

func (s *session) budget() (string, error) {
	fare, nightly, _, _ := s.offers()
	if h := compliantHotel(s.catalog, s.trip.Destination); h != nil {
		nightly = h.Nightly
	}
	perDiem, err := s.call(ToolPerDiem, map[string]string{"city": s.trip.Destination})
	if err != nil {
		return "", err
	}
	total, err := s.call(ToolEstimateCost, map[string]string{
		"fare":    fmt.Sprintf("%.0f", fare),
		"nightly": fmt.Sprintf("%.0f", nightly),
		"perDiem": perDiem,
		"nights":  fmt.Sprint(s.trip.Nights),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Budget estimate: $%s total (airfare $%.0f, lodging $%.0f x %d nights, per diem $%s x %d days).",
		total, fare, nightly, s.trip.Nights, perDiem, s.trip.Nights+1), nil
}

func (s *session) optimize() (string, error) {
	fare, nightly, flight, hotel := s.offers()
	verdict, err := s.checkPolicy(fare, nightly)
	if err != nil {
		return "", err
	}
	if verdict == "compliant" {
		return fmt.Sprintf("Optimization: itinerary is already the lowest cost option (%s, %s).", flight, hotel), nil
	}
	var advice []string
	if h := compliantHotel(s.catalog, s.trip.Destination); h == nil {
		advice = append(advice, fmt.Sprintf("request a rate exception for %s", s.trip.Destination))
	} else if h.Name != hotel {
		advice = append(advice, fmt.Sprintf("switch to %s at $%.0f/night", h.Name, h.Nightly))
	}
	if s.trip.LeadDays < s.catalog.Policy.MinAdvanceDays {
		advice = append(advice, fmt.Sprintf("move departure to at least %d days out or obtain manager sign-off", s.catalog.Policy.MinAdvanceDays))
	}
	if len(advice) == 0 {
		advice = append(advice, "keep the current itinerary with manager sign-off")
	}
	return "Optimization: " + strings.Join(advice, "; ") + ".", nil
}

func (s *session) book() (string, error) {
	_, _, flight, hotel := s.offers()
	if h := compliantHotel(s.catalog, s.trip.Destination); h != nil {
		hotel = h.Name
	}
	code, err := s.call(ToolReserve, map[string]string{"flight": flight, "hotel": hotel, "reference": s.request})
	if err != nil {
		return "", err
	}
	var parts []string
	if flight != "" {
		parts = append(parts, fmt.Sprintf("%s %s -> %s", flight, s.trip.Origin, s.trip.Destination))
	}
	if hotel != "" {
		parts = append(parts, fmt.Sprintf("%s for %d nights", hotel, s.trip.Nights))
	}
	return fmt.Sprintf("Booking confirmed: %s. Confirmation %s.", strings.Join(parts, " and "), code), nil
}

func compliantHotel(catalog *Catalog, city string) *Hotel {
	limit := catalog.Policy.HotelCap(city)
	for _, h := range catalog.HotelsIn(city) {
		if h.Nightly <= limit {
			return h
		}
	}
	return nil
}

func confirmationCode(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return fmt.Sprintf("TRV-%06X", h.Sum32()&0xFFFFFF)
}

var _ executor.Runner = (*Scripted)(nil)
