package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendro/internal/leave"
	"attendro/internal/roster"
	"attendro/internal/session"
	"attendro/internal/substitution"
	"attendro/internal/timetable"
	"attendro/internal/transfer"
)

// respondErr maps domain errors to HTTP status codes. Anything unmapped
// is a 500 with a generic body so internals never leak to clients.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timetable.ErrNotFound),
		errors.Is(err, leave.ErrNotFound),
		errors.Is(err, substitution.ErrNotFound),
		errors.Is(err, transfer.ErrNotFound),
		errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, leave.ErrInvalidTransition),
		errors.Is(err, substitution.ErrInvalidTransition),
		errors.Is(err, transfer.ErrInvalidTransition),
		errors.Is(err, substitution.ErrAlreadyCovered),
		errors.Is(err, substitution.ErrStaleLeave),
		errors.Is(err, session.ErrDuplicateSession),
		errors.Is(err, timetable.ErrSlotOverlap),
		errors.Is(err, timetable.ErrSlotInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrTooEarly),
		errors.Is(err, session.ErrWindowClosed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, transfer.ErrNotRequester),
		errors.Is(err, transfer.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, transfer.ErrSlotNotScheduled),
		errors.Is(err, transfer.ErrNotSlotOwner),
		errors.Is(err, session.ErrNoStudents):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func leaveJSON(l leave.Request) gin.H {
	return gin.H{
		"id":         l.ID,
		"faculty_id": l.FacultyID,
		"date":       l.Date.Format(dateLayout),
		"leave_type": string(l.Kind),
		"reason":     l.Reason,
		"status":     string(l.Status),
		"created_at": l.CreatedAt,
	}
}

func assignmentJSON(a substitution.Assignment) gin.H {
	return gin.H{
		"id":             a.ID,
		"src_faculty_id": a.SrcFacultyID,
		"sub_faculty_id": a.SubFacultyID,
		"class_id":       a.ClassID,
		"subject_id":     a.SubjectID,
		"date":           a.Date.Format(dateLayout),
		"start_time":     a.Start.String(),
		"status":         string(a.Status),
		"type":           string(a.Type),
		"notes":          a.Notes,
		"assigned_by":    a.AssignedBy,
		"created_at":     a.CreatedAt,
	}
}

func transferJSON(t transfer.Transfer) gin.H {
	return gin.H{
		"id":              t.ID,
		"from_faculty_id": t.FromFacultyID,
		"to_faculty_id":   t.ToFacultyID,
		"slot_id":         t.SlotID,
		"date":            t.Date.Format(dateLayout),
		"reason":          t.Reason,
		"status":          string(t.Status),
		"requested_at":    t.RequestedAt,
		"responded_at":    t.RespondedAt,
	}
}

func slotJSON(s timetable.Slot) gin.H {
	return gin.H{
		"id":          s.ID,
		"faculty_id":  s.FacultyID,
		"class_id":    s.ClassID,
		"subject_id":  s.SubjectID,
		"batch_id":    s.BatchID,
		"day_of_week": string(s.Day),
		"start_time":  s.Start.String(),
		"room_no":     s.Room,
		"valid_from":  s.ValidFrom.Format(dateLayout),
		"valid_to":    s.ValidTo.Format(dateLayout),
	}
}

func summaryJSON(s substitution.Summary) gin.H {
	assigned := make([]gin.H, 0, len(s.Assigned))
	for _, a := range s.Assigned {
		assigned = append(assigned, assignmentJSON(a))
	}
	uncovered := make([]gin.H, 0, len(s.Uncovered))
	for _, u := range s.Uncovered {
		uncovered = append(uncovered, gin.H{
			"slot_id":    u.SlotID,
			"class_id":   u.ClassID,
			"subject_id": u.SubjectID,
			"start_time": u.Start.String(),
		})
	}
	return gin.H{"assigned": assigned, "uncovered": uncovered}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
