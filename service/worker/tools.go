package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jongalloway/travel-booking-agents/model"
)

// Tool names
const (
	ToolSearchFlights = "search_flights"
	ToolSearchHotels  = "search_hotels"
	ToolCheckPolicy   = "check_policy"
	ToolPerDiem       = "per_diem"
	ToolEstimateCost  = "estimate_cost"
	ToolReserve       = "reserve"
)

// Tools returns the tool functions backed by the catalog.
func (c *Catalog) Tools() map[string]*model.Tool {
	return map[string]*model.Tool{
		ToolSearchFlights: {Name: ToolSearchFlights, Description: "Lists flights between two cities, cheapest first.", Func: c.searchFlights},
		ToolSearchHotels:  {Name: ToolSearchHotels, Description: "Lists hotels in a city, cheapest first.", Func: c.searchHotels},
		ToolCheckPolicy:   {Name: ToolCheckPolicy, Description: "Checks a trip against the corporate travel policy.", Func: c.checkPolicy},
		ToolPerDiem:       {Name: ToolPerDiem, Description: "Returns the daily meal allowance for a city.", Func: c.perDiem},
		ToolEstimateCost:  {Name: ToolEstimateCost, Description: "Totals fare, lodging and per diem for a stay.", Func: c.estimateCost},
		ToolReserve:       {Name: ToolReserve, Description: "Places a reservation and returns its confirmation code.", Func: c.reserve},
	}
}

func (c *Catalog) searchFlights(_ context.Context, args map[string]string) (string, error) {
	flights := c.FlightsFor(args["from"], args["to"])
	if len(flights) == 0 {
		return fmt.Sprintf("no flights found from %s to %s", args["from"], args["to"]), nil
	}
	parts := make([]string, 0, len(flights))
	for _, f := range flights {
		parts = append(parts, fmt.Sprintf("%s %s $%.0f", f.Airline, f.Number, f.Fare))
	}
	return strings.Join(parts, "; "), nil
}

func (c *Catalog) searchHotels(_ context.Context, args map[string]string) (string, error) {
	hotels := c.HotelsIn(args["city"])
	if len(hotels) == 0 {
		return fmt.Sprintf("no hotels found in %s", args["city"]), nil
	}
	parts := make([]string, 0, len(hotels))
	for _, h := range hotels {
		parts = append(parts, fmt.Sprintf("%s $%.0f/night (%.1f)", h.Name, h.Nightly, h.Rating))
	}
	return strings.Join(parts, "; "), nil
}

// checkPolicy reports "compliant" or a list of violations.
func (c *Catalog) checkPolicy(_ context.Context, args map[string]string) (string, error) {
	leadDays, err := intArg(args, "leadDays")
	if err != nil {
		return "", err
	}
	nightly, err := floatArg(args, "nightly")
	if err != nil {
		return "", err
	}
	fare, err := floatArg(args, "fare")
	if err != nil {
		return "", err
	}
	city := args["city"]
	var violations []string
	if leadDays < c.Policy.MinAdvanceDays {
		violations = append(violations, fmt.Sprintf("booked %d days ahead, policy requires at least %d", leadDays, c.Policy.MinAdvanceDays))
	}
	if limit := c.Policy.HotelCap(city); nightly > limit {
		violations = append(violations, fmt.Sprintf("hotel rate $%.0f/night exceeds the %s cap of $%.0f", nightly, city, limit))
	}
	if c.Policy.MaxFlightFare > 0 && fare > c.Policy.MaxFlightFare {
		violations = append(violations, fmt.Sprintf("airfare $%.0f exceeds the $%.0f limit", fare, c.Policy.MaxFlightFare))
	}
	if len(violations) == 0 {
		return "compliant", nil
	}
	return "violation: " + strings.Join(violations, "; "), nil
}

func (c *Catalog) perDiem(_ context.Context, args map[string]string) (string, error) {
	return fmt.Sprintf("%.0f", c.PerDiemFor(args["city"])), nil
}

func (c *Catalog) estimateCost(_ context.Context, args map[string]string) (string, error) {
	fare, err := floatArg(args, "fare")
	if err != nil {
		return "", err
	}
	nightly, err := floatArg(args, "nightly")
	if err != nil {
		return "", err
	}
	perDiem, err := floatArg(args, "perDiem")
	if err != nil {
		return "", err
	}
	nights, err := intArg(args, "nights")
	if err != nil {
		return "", err
	}
	days := float64(nights + 1)
	total := fare + nightly*float64(nights) + perDiem*days
	return fmt.Sprintf("%.0f", total), nil
}

func (c *Catalog) reserve(_ context.Context, args map[string]string) (string, error) {
	if args["flight"] == "" && args["hotel"] == "" {
		return "", fmt.Errorf("nothing to reserve")
	}
	return confirmationCode(args["flight"] + "|" + args["hotel"] + "|" + args["reference"]), nil
}

func intArg(args map[string]string, name string) (int, error) {
	v, err := strconv.Atoi(args[name])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, args[name], err)
	}
	return v, nil
}

func floatArg(args map[string]string, name string) (float64, error) {
	v, err := strconv.ParseFloat(args[name], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, args[name], err)
	}
	return v, nil
}
