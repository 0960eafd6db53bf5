package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/piquet-h/worldengine/internal/telemetry"
	"github.com/piquet-h/worldengine/internal/worlderr"
)

// envelope is the §6 response wrapper: every route returns either a
// success envelope carrying data, or a failure envelope carrying a
// {code, message} error, both always stamped with the correlation id.
type envelope struct {
	Success       bool          `json:"success"`
	Data          any           `json:"data,omitempty"`
	Error         *envelopeErr  `json:"error,omitempty"`
	CorrelationID string        `json:"correlationId"`
}

type envelopeErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ok writes a success envelope, echoing the correlation id and, when the
// request carries one, the x-player-guid header.
func ok(c *gin.Context, status int, data any) {
	stampPlayerGuid(c)
	c.JSON(status, envelope{
		Success:       true,
		Data:          data,
		CorrelationID: telemetry.CorrelationID(c),
	})
}

// fail writes a failure envelope, mapping err to an HTTP status and a
// stable error code per §7's error kind table.
func fail(c *gin.Context, err error) {
	stampPlayerGuid(c)
	status, code := statusForError(err)
	c.JSON(status, envelope{
		Success:       false,
		Error:         &envelopeErr{Code: code, Message: err.Error()},
		CorrelationID: telemetry.CorrelationID(c),
	})
}

func stampPlayerGuid(c *gin.Context) {
	if guid := c.GetHeader(telemetry.HeaderPlayerGuid); guid != "" {
		c.Writer.Header().Set(telemetry.HeaderPlayerGuid, guid)
	}
}

// statusForError maps a typed worlderr error to its HTTP status and a
// stable machine-readable code, per §7's mapping table. The zero value
// (unrecognized error type) falls through to 500/Internal rather than
// leaking storage internals.
func statusForError(err error) (int, string) {
	switch e := err.(type) {
	case *worlderr.ValidationError:
		return http.StatusBadRequest, "ValidationError"
	case *worlderr.AmbiguousDirectionError:
		return http.StatusBadRequest, "AmbiguousDirection"
	case *worlderr.NoExitError:
		return http.StatusBadRequest, "NoExit"
	case *worlderr.GenerateSignal:
		return http.StatusBadRequest, "Generate"
	case *worlderr.FromMissingError:
		return http.StatusNotFound, "FromMissing"
	case *worlderr.LocationNotFoundError:
		return http.StatusNotFound, "LocationNotFound"
	case *worlderr.NotFoundError:
		return http.StatusNotFound, "NotFound"
	case *worlderr.TargetMissingError:
		return http.StatusInternalServerError, "TargetMissing"
	case *worlderr.ConflictError:
		return http.StatusConflict, "Conflict"
	case *worlderr.ConcurrentAdvancementError:
		return http.StatusConflict, "ConcurrentAdvancement"
	case *worlderr.TimeoutError:
		return http.StatusGatewayTimeout, "Timeout"
	case *worlderr.InternalError:
		return http.StatusInternalServerError, "Internal"
	default:
		_ = e
		return http.StatusInternalServerError, "Internal"
	}
}

// generationHint accompanies a Generate failure envelope's error with
// the origin/direction a client should request expansion for.
type generationHint struct {
	OriginLocationID string `json:"originLocationId"`
	Direction        string `json:"direction"`
}

// failMove writes a failure envelope for a move-pipeline error,
// attaching a generationHint alongside the error when the error is a
// GenerateSignal so the client can drive §4.9's area generation route
// without re-deriving the hint itself.
func failMove(c *gin.Context, err error) {
	stampPlayerGuid(c)
	status, code := statusForError(err)

	env := envelope{
		Success:       false,
		Error:         &envelopeErr{Code: code, Message: err.Error()},
		CorrelationID: telemetry.CorrelationID(c),
	}

	if gen, isGen := err.(*worlderr.GenerateSignal); isGen {
		env.Data = gin.H{
			"generationHint": generationHint{
				OriginLocationID: gen.LocationID,
				Direction:        gen.Direction,
			},
		}
	}

	c.JSON(status, env)
}
