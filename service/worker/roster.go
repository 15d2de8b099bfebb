package worker

import (
	"time"

	"github.com/jongalloway/travel-booking-agents/model"
)

// Worker names in pipeline order.
const (
	Research  = model.WorkerResearch
	Policy    = model.WorkerPolicy
	Budget    = model.WorkerBudget
	Optimizer = model.WorkerOptimizer
	Booking   = model.WorkerBooking
)

// PipelineOrder is the roster order.
var PipelineOrder = model.PipelineOrder

// Config tunes the example workers.
type Config struct {
	// Latency simulates reasoning time per worker.
	Latency map[string]time.Duration `yaml:"latency,omitempty"`
	// Fallbacks overrides the degraded output per worker.
	Fallbacks map[string]string `yaml:"fallbacks,omitempty"`
	// Timeouts overrides the step deadline per worker.
	Timeouts map[string]time.Duration `yaml:"timeouts,omitempty"`
	// Failures makes a worker fail with the given message.
	Failures map[string]string `yaml:"failures,omitempty"`
}

type definition struct {
	description  string
	instructions string
	fallback     string
	tools        []string
}

var definitions = map[string]definition{
	Research: {
		description:  "Researches flight and hotel options for the requested trip.",
		instructions: "Find flights and hotels for the destination and dates. List the cheapest options with prices.",
		fallback:     "Research unavailable: use the preferred-vendor list and book the lowest published economy fare.",
		tools:        []string{ToolSearchFlights, ToolSearchHotels},
	},
	Policy: {
		description:  "Checks the itinerary against the corporate travel policy.",
		instructions: "Verify advance booking, nightly hotel caps and airfare limits. Report 'compliant' or list each violation.",
		fallback:     "Policy check unavailable: treat the trip as requiring manager review before booking.",
		tools:        []string{ToolSearchFlights, ToolSearchHotels, ToolCheckPolicy},
	},
	Budget: {
		description:  "Estimates the total trip cost including per diem.",
		instructions: "Total the airfare, lodging and per diem for the stay and state the estimate.",
		fallback:     "Budget estimate unavailable: assume the standard cost-center allowance for domestic travel.",
		tools:        []string{ToolSearchFlights, ToolSearchHotels, ToolPerDiem, ToolEstimateCost},
	},
	Optimizer: {
		description:  "Proposes adjustments that lower cost or restore policy compliance.",
		instructions: "Suggest compliant alternatives for any violation, otherwise suggest savings.",
		fallback:     "Optimization unavailable: keep the current itinerary.",
		tools:        []string{ToolSearchFlights, ToolSearchHotels, ToolCheckPolicy},
	},
	Booking: {
		description:  "Books the final itinerary and returns a confirmation.",
		instructions: "Reserve the selected flight and hotel and report the confirmation code.",
		fallback:     "Booking deferred: a travel coordinator will complete the reservation manually.",
		tools:        []string{ToolSearchFlights, ToolSearchHotels, ToolCheckPolicy, ToolReserve},
	},
}

// Roster builds fresh worker definitions in pipeline order.
func Roster(catalog *Catalog, config *Config) []*model.Worker {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if config == nil {
		config = &Config{}
	}
	tools := catalog.Tools()
	ret := make([]*model.Worker, 0, len(PipelineOrder))
	for _, name := range PipelineOrder {
		def := definitions[name]
		w := &model.Worker{
			Name:         name,
			Description:  def.description,
			Instructions: def.instructions,
			Fallback:     def.fallback,
			Timeout:      config.Timeouts[name],
		}
		if fallback, ok := config.Fallbacks[name]; ok && fallback != "" {
			w.Fallback = fallback
		}
		for _, toolName := range def.tools {
			w.Tools = append(w.Tools, tools[toolName])
		}
		ret = append(ret, w)
	}
	return ret
}
