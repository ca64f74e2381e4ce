package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/curriculum"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NAVIGATION QUERY
// Resolves the position of one content item inside the fixed curriculum
// sequence: can the learner go forward or back, where does each direction
// lead, and is the current item already completed.
//
// The sequence is immutable for the lifetime of the process, so the query
// is pure computation over the sequencer plus one session store read.
// ══════════════════════════════════════════════════════════════════════════════

// ErrUnknownContent is returned when the module/topic pair is not part of
// the curriculum.
var ErrUnknownContent = errors.New("get_navigation: content not found in curriculum")

// GetNavigationQuery identifies the content item to resolve.
type GetNavigationQuery struct {
	// ModuleID is the module of the item.
	ModuleID string

	// TopicID is the lesson ID or "quiz".
	TopicID string
}

// Validate validates the query.
func (q *GetNavigationQuery) Validate() error {
	if strings.TrimSpace(q.ModuleID) == "" {
		return errors.New("get_navigation: module_id is required")
	}
	if strings.TrimSpace(q.TopicID) == "" {
		return errors.New("get_navigation: topic_id is required")
	}
	return nil
}

// NavigationDTO describes the position of a content item.
type NavigationDTO struct {
	// Current is the resolved item.
	Current ContentRefDTO `json:"current"`

	// State carries the forward/backward availability flags.
	State curriculum.NavigationState `json:"state"`

	// Next is the following item; nil at the end of the programme.
	Next *ContentRefDTO `json:"next,omitempty"`

	// Previous is the preceding item; nil at the start.
	Previous *ContentRefDTO `json:"previous,omitempty"`

	// NextRoute is the locator of the next step: the next item's route
	// or the dashboard when the programme ends here.
	NextRoute string `json:"nextRoute"`

	// GlobalIndex is the zero-based position in the sequence.
	GlobalIndex int `json:"globalIndex"`

	// TotalContent is the length of the sequence.
	TotalContent int `json:"totalContent"`

	// Completed reports whether the learner already completed the item.
	// Always false when no profile is loaded.
	Completed bool `json:"completed"`

	// IsModuleTransition reports that the next item opens another module.
	IsModuleTransition bool `json:"isModuleTransition"`
}

// GetNavigationHandler answers navigation queries.
type GetNavigationHandler struct {
	sequencer *curriculum.Sequencer
	store     *session.Store
	logger    *slog.Logger
}

// NewGetNavigationHandler creates a new navigation query handler.
// The store is optional: without it completion flags stay false.
func NewGetNavigationHandler(
	sequencer *curriculum.Sequencer,
	store *session.Store,
	logger *slog.Logger,
) *GetNavigationHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &GetNavigationHandler{
		sequencer: sequencer,
		store:     store,
		logger:    logger.With("query", "get_navigation"),
	}
}

// Handle executes the navigation query.
func (h *GetNavigationHandler) Handle(_ context.Context, q GetNavigationQuery) (*NavigationDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	current := h.sequencer.Lookup(q.ModuleID, q.TopicID)
	if current == nil {
		return nil, ErrUnknownContent
	}

	dto := &NavigationDTO{
		Current:      h.ref(current),
		State:        h.sequencer.NavigationState(q.ModuleID, q.TopicID),
		NextRoute:    curriculum.DashboardRoute,
		GlobalIndex:  current.GlobalIndex,
		TotalContent: h.sequencer.Len(),
	}

	if next := h.sequencer.Next(q.ModuleID, q.TopicID); next != nil {
		ref := h.ref(next)
		dto.Next = &ref
		dto.NextRoute = ref.Route
		dto.IsModuleTransition = next.IsModuleTransition
	}

	if prev := h.sequencer.Previous(q.ModuleID, q.TopicID); prev != nil {
		ref := h.ref(prev)
		dto.Previous = &ref
	}

	if h.store != nil {
		if p := h.store.Profile(); p != nil {
			dto.Completed = p.Progress.IsCompleted(current.ModuleID, current.TopicID)
		}
	}

	return dto, nil
}

func (h *GetNavigationHandler) ref(item *curriculum.ContentItem) ContentRefDTO {
	return ContentRefDTO{
		ModuleID:    item.ModuleID,
		TopicID:     item.TopicID,
		Title:       item.Title,
		Type:        item.Type.String(),
		ModuleTitle: item.ModuleTitle,
		Route:       h.sequencer.RouteFor(item.ModuleID, item.TopicID),
	}
}
