package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/piquet-h/worldengine/internal/areagen"
	"github.com/piquet-h/worldengine/internal/domain"
	"github.com/piquet-h/worldengine/internal/exits"
	"github.com/piquet-h/worldengine/internal/move"
	"github.com/piquet-h/worldengine/internal/player"
	"github.com/piquet-h/worldengine/internal/telemetry"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

func warningFields(w exits.IntegrityWarning) []zap.Field {
	return []zap.Field{
		zap.String("direction", string(w.Direction)),
		zap.String("conflict", string(w.Conflict)),
	}
}

// handlePing answers a liveness probe with the message it was given,
// per §6's `{reply, latencyMs}` contract.
func (s *Server) handlePing(c *gin.Context) {
	start := time.Now()
	msg := c.Query("msg")
	ok(c, http.StatusOK, gin.H{
		"reply":     msg,
		"latencyMs": time.Since(start).Milliseconds(),
	})
}

// handleHealth reports process health without touching any collaborator,
// so it stays answerable even if a downstream store is degraded.
func (s *Server) handleHealth(c *gin.Context) {
	start := time.Now()
	ok(c, http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.cfg.Tracing.ServiceName,
		"latencyMs": time.Since(start).Milliseconds(),
	})
}

// handlePlayerBootstrap resolves or creates the caller's player, per
// §6's idempotent bootstrap contract: a missing or invalid x-player-guid
// header mints a fresh guest.
func (s *Server) handlePlayerBootstrap(c *gin.Context) {
	start := time.Now()
	now := time.Now()

	guid := c.GetHeader(telemetry.HeaderPlayerGuid)
	if _, err := uuid.Parse(guid); err != nil {
		guid = player.NewGuid()
		c.Request.Header.Set(telemetry.HeaderPlayerGuid, guid)
	}

	result, err := s.players.Bootstrap(c.Request.Context(), guid, now)
	if err != nil {
		failMove(c, err)
		return
	}

	c.Writer.Header().Set(telemetry.HeaderPlayerGuid, result.Player.ID)
	ok(c, http.StatusOK, gin.H{
		"playerGuid":        result.Player.ID,
		"created":           result.Created,
		"currentLocationId": result.Player.CurrentLocationID,
		"name":              result.Player.Name,
		"latencyMs":         time.Since(start).Milliseconds(),
	})
}

// handlePlayerGet looks a player up by `?id=` or the x-player-guid
// header, preferring the explicit query parameter.
func (s *Server) handlePlayerGet(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		id = c.GetHeader(telemetry.HeaderPlayerGuid)
	}
	if id == "" {
		fail(c, &worlderr.ValidationError{Field: "id", Message: "must be supplied via query or x-player-guid header"})
		return
	}

	p, err := s.players.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if p == nil {
		fail(c, &worlderr.NotFoundError{Resource: "player", ID: id})
		return
	}

	ok(c, http.StatusOK, gin.H{
		"id":         p.ID,
		"guest":      p.Guest,
		"externalId": p.ExternalID,
	})
}

// handlePlayerMove runs a single request through the move pipeline,
// per §4.8, returning the destination location on success or the
// pipeline's typed error (including a pending-generation signal) on
// failure.
func (s *Server) handlePlayerMove(c *gin.Context) {
	req := move.Request{
		FromID:        c.Query("from"),
		RawDirection:  c.Query("dir"),
		PlayerGuid:    c.GetHeader(telemetry.HeaderPlayerGuid),
		CorrelationID: telemetry.CorrelationID(c),
	}

	outcome, err := s.move.Move(c.Request.Context(), req, time.Now())
	if err != nil {
		failMove(c, err)
		return
	}

	ok(c, http.StatusOK, outcome.Location.Location)
}

// handleLocationGet returns a raw location by id.
func (s *Server) handleLocationGet(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		fail(c, &worlderr.ValidationError{Field: "id", Message: "cannot be empty"})
		return
	}

	loc, err := s.graph.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if loc == nil {
		fail(c, &worlderr.LocationNotFoundError{LocationID: id})
		return
	}

	ok(c, http.StatusOK, loc)
}

// handleLocationLook returns a location with its exit array expanded
// through the availability model (§4.2), so a caller sees pending and
// forbidden directions alongside hard exits without a second call.
func (s *Server) handleLocationLook(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		fail(c, &worlderr.ValidationError{Field: "id", Message: "cannot be empty"})
		return
	}

	loc, err := s.graph.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if loc == nil {
		fail(c, &worlderr.LocationNotFoundError{LocationID: id})
		return
	}

	exitArray, warnings := exits.BuildArray(loc.Exits, loc.ExitAvailability)
	for _, w := range warnings {
		s.logger.Warn("exit availability integrity warning", warningFields(w)...)
	}

	ok(c, http.StatusOK, gin.H{
		"id":          loc.ID,
		"name":        loc.Name,
		"description": loc.Description,
		"version":     loc.Version,
		"exits":       exitArray,
	})
}

// generateAreaRequest is the parsed-then-validated boundary struct for
// POST /api/world/generate-area, per §9's design note replacing
// untyped JSON with validated structs at the HTTP boundary.
type generateAreaRequest struct {
	AnchorLocationID string   `json:"anchorLocationId"`
	Mode             string   `json:"mode"`
	BudgetLocations  int      `json:"budgetLocations"`
	RealmHints       []string `json:"realmHints"`
	IdempotencyKey   string   `json:"idempotencyKey"`
}

// handleGenerateArea enqueues an area generation request through the
// orchestrator (§4.9), applying its budget-clamping and idempotency-key
// deduplication.
func (s *Server) handleGenerateArea(c *gin.Context) {
	var body generateAreaRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &worlderr.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	mode := areagen.Mode(body.Mode)
	if mode == "" {
		mode = areagen.ModeAuto
	}

	result, err := s.areagen.Orchestrate(c.Request.Context(), areagen.Request{
		AnchorLocationID: body.AnchorLocationID,
		Mode:             mode,
		BudgetLocations:  body.BudgetLocations,
		RealmHints:       body.RealmHints,
		IdempotencyKey:   body.IdempotencyKey,
	}, telemetry.CorrelationID(c), time.Now())
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"enqueuedCount":    result.EnqueuedCount,
		"anchorLocationId": result.AnchorLocationID,
		"terrain":          result.Terrain,
		"idempotencyKey":   result.IdempotencyKey,
		"clamped":          result.Clamped,
		"maxBudget":        result.MaxBudget,
	})
}

// linkRoomsRequest is the parsed-then-validated boundary struct for
// POST /api/world/link-rooms.
type linkRoomsRequest struct {
	OriginID    string `json:"originId"`
	DestID      string `json:"destId"`
	Dir         string `json:"dir"`
	Reciprocal  bool   `json:"reciprocal"`
	Description string `json:"description"`
}

// handleLinkRooms creates a hard exit edge between two existing
// locations, optionally creating the reciprocal edge in the same call.
func (s *Server) handleLinkRooms(c *gin.Context) {
	var body linkRoomsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &worlderr.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	if body.OriginID == "" || body.DestID == "" {
		fail(c, &worlderr.ValidationError{Field: "originId/destId", Message: "cannot be empty"})
		return
	}

	dir := domain.Direction(body.Dir)
	if !domain.IsCanonical(dir) {
		fail(c, &worlderr.ValidationError{Field: "dir", Message: "not a canonical direction"})
		return
	}

	result, err := s.graph.EnsureExitBidirectional(c.Request.Context(), body.OriginID, dir, body.DestID, body.Reciprocal, body.Description, body.Description)
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{"created": result.ExitsCreated > 0}
	if body.Reciprocal {
		resp["reciprocalCreated"] = result.ReciprocalApplied > 0
	}
	ok(c, http.StatusOK, resp)
}
