package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendro/internal/auth"
	"attendro/internal/availability"
	"attendro/internal/config"
	"attendro/internal/httpmiddleware"
	"attendro/internal/leave"
	"attendro/internal/queue"
	"attendro/internal/roster"
	"attendro/internal/session"
	"attendro/internal/store"
	"attendro/internal/substitution"
	"attendro/internal/timetable"
	"attendro/internal/transfer"
)

const dateLayout = "2006-01-02"

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendro:events")
	}

	slots := timetable.NewRepository(db.Client)
	pool := roster.NewRepository(db.Client)
	leaves := leave.NewRepository(db.Client)
	assignments := substitution.NewRepository(db.Client)
	transfers := transfer.NewRepository(db.Client)
	sessions := session.NewRepository(db.Client)

	resolver := availability.NewResolver(slots, leaves, assignments, cfg.MiddayBoundary)
	engine := substitution.NewEngine(slots, pool, assignments, leaves, resolver, cfg.MiddayBoundary)
	leaveSvc := leave.NewService(leaves, q)
	transferWf := transfer.NewWorkflow(transfers, slots, assignments)
	captureWin := session.Window{OpenBefore: cfg.CaptureOpenBefore, Grace: cfg.CaptureGrace}
	sessionSvc := session.NewService(sessions, slots, assignments, captureWin)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Dev token mint; the real portal hands tokens out at login, which lives
	// outside this service.
	if cfg.Env != "production" && cfg.Env != "prod" {
		r.POST("/v1/dev/tokens", func(c *gin.Context) {
			var req struct {
				Subject string `json:"subject" binding:"required"`
				Role    string `json:"role" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			token, exp, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
		})
	}

	v1 := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))
	admin := v1.Group("", auth.RequireAdmin())

	// --- leaves ---

	v1.POST("/leaves", func(c *gin.Context) {
		var req struct {
			FacultyID string `json:"faculty_id"`
			Date      string `json:"date" binding:"required"`
			LeaveType string `json:"leave_type" binding:"required"`
			Reason    string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)
		if claims.Role != auth.RoleAdmin || req.FacultyID == "" {
			req.FacultyID = claims.Subject
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		created, err := leaveSvc.Submit(c.Request.Context(), req.FacultyID, date, leave.Kind(req.LeaveType), req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, leaveJSON(created))
	})

	v1.GET("/leaves", func(c *gin.Context) {
		list, err := leaves.List(c.Request.Context(), c.Query("faculty_id"), leave.Status(c.Query("status")))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, l := range list {
			out = append(out, leaveJSON(l))
		}
		c.JSON(http.StatusOK, gin.H{"leaves": out})
	})

	admin.POST("/leaves/:id/approve", func(c *gin.Context) {
		approved, err := leaveSvc.Approve(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		// Approval triggers automatic resolution; the summary goes straight
		// back to the approving admin.
		summary, err := engine.ResolveLeave(c.Request.Context(), approved.ID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"leave":   leaveJSON(approved),
			"summary": summaryJSON(summary),
		})
	})

	admin.POST("/leaves/:id/reject", func(c *gin.Context) {
		rejected, err := leaveSvc.Reject(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, leaveJSON(rejected))
	})

	// --- availability ---

	v1.GET("/availability", func(c *gin.Context) {
		date, err := time.Parse(dateLayout, c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		start, err := timetable.ParseClock(c.Query("time"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "time must be HH:MM"})
			return
		}
		facultyID := c.Query("faculty_id")
		if facultyID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "faculty_id required"})
			return
		}
		check, err := resolver.IsAvailable(c.Request.Context(), facultyID, date, start)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"free": check.Free, "busy_reason": string(check.Reason)})
	})

	// --- substitutions ---

	admin.POST("/substitutions/resolve", func(c *gin.Context) {
		var req struct {
			FacultyID string `json:"faculty_id" binding:"required"`
			Date      string `json:"date" binding:"required"`
			Window    string `json:"window"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		window := leave.Kind(req.Window)
		if req.Window == "" {
			window = leave.FullDay
		}
		if !window.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		claims, _ := auth.FromContext(c)
		summary, err := engine.Resolve(c.Request.Context(), req.FacultyID, date, window, substitution.Manual, claims.Subject)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, summaryJSON(summary))
	})

	admin.POST("/substitutions", func(c *gin.Context) {
		var req struct {
			SrcFacultyID string `json:"src_faculty_id" binding:"required"`
			SubFacultyID string `json:"sub_faculty_id" binding:"required"`
			ClassID      string `json:"class_id" binding:"required"`
			SubjectID    string `json:"subject_id" binding:"required"`
			Date         string `json:"date" binding:"required"`
			StartTime    string `json:"start_time" binding:"required"`
			Notes        string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		start, err := timetable.ParseClock(req.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be HH:MM"})
			return
		}
		check, err := resolver.IsAvailable(c.Request.Context(), req.SubFacultyID, date, start)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !check.Free {
			c.JSON(http.StatusConflict, gin.H{"error": "substitute not available", "busy_reason": string(check.Reason)})
			return
		}
		claims, _ := auth.FromContext(c)
		a, err := assignments.Insert(c.Request.Context(), substitution.Assignment{
			SrcFacultyID: req.SrcFacultyID,
			SubFacultyID: req.SubFacultyID,
			ClassID:      req.ClassID,
			SubjectID:    req.SubjectID,
			Date:         date,
			Start:        start,
			Status:       substitution.Confirmed,
			Type:         substitution.Manual,
			Notes:        req.Notes,
			AssignedBy:   claims.Subject,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, assignmentJSON(a))
	})

	admin.PATCH("/substitutions/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a, err := assignments.UpdateStatus(c.Request.Context(), c.Param("id"), substitution.Status(req.Status))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, assignmentJSON(a))
	})

	v1.GET("/substitutions", func(c *gin.Context) {
		var f substitution.Filters
		if v := c.Query("date"); v != "" {
			d, err := time.Parse(dateLayout, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			f.Date = &d
		}
		if v := c.Query("from"); v != "" {
			if d, err := time.Parse(dateLayout, v); err == nil {
				f.DateFrom = &d
			}
		}
		if v := c.Query("to"); v != "" {
			if d, err := time.Parse(dateLayout, v); err == nil {
				f.DateTo = &d
			}
		}
		f.SrcFacultyID = c.Query("src_faculty_id")
		f.SubFacultyID = c.Query("sub_faculty_id")
		f.Status = substitution.Status(c.Query("status"))
		list, err := assignments.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, a := range list {
			out = append(out, assignmentJSON(a))
		}
		c.JSON(http.StatusOK, gin.H{"assignments": out})
	})

	// --- transfers ---

	v1.POST("/transfers", func(c *gin.Context) {
		var req struct {
			ToFacultyID string `json:"to_faculty_id" binding:"required"`
			SlotID      string `json:"slot_id" binding:"required"`
			Date        string `json:"date" binding:"required"`
			Reason      string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		claims, _ := auth.FromContext(c)
		t, err := transferWf.Request(c.Request.Context(), claims.Subject, req.ToFacultyID, req.SlotID, date, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, transferJSON(t))
	})

	v1.GET("/transfers", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		list, err := transfers.List(c.Request.Context(), claims.Subject, c.Query("direction"), transfer.Status(c.Query("status")))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, t := range list {
			out = append(out, transferJSON(t))
		}
		c.JSON(http.StatusOK, gin.H{"transfers": out})
	})

	v1.POST("/transfers/:id/accept", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		t, a, err := transferWf.Accept(c.Request.Context(), c.Param("id"), claims.Subject)
		if err != nil {
			respondErr(c, err)
			return
		}
		resp := gin.H{"transfer": transferJSON(t)}
		if a != nil {
			resp["assignment"] = assignmentJSON(*a)
		}
		c.JSON(http.StatusOK, resp)
	})

	v1.POST("/transfers/:id/reject", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		t, err := transferWf.Reject(c.Request.Context(), c.Param("id"), claims.Subject)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, transferJSON(t))
	})

	v1.POST("/transfers/:id/cancel", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		t, err := transferWf.Cancel(c.Request.Context(), c.Param("id"), claims.Subject)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, transferJSON(t))
	})

	// --- sessions & gate ---

	v1.GET("/today", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		facultyID := claims.Subject
		if claims.Role == auth.RoleAdmin && c.Query("faculty_id") != "" {
			facultyID = c.Query("faculty_id")
		}
		now := time.Now()
		views, err := sessionSvc.TodayView(c.Request.Context(), now, facultyID, now)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(views))
		for _, v := range views {
			out = append(out, gin.H{
				"slot_id":         v.SlotID,
				"class_id":        v.ClassID,
				"subject_id":      v.SubjectID,
				"batch_id":        v.BatchID,
				"start_time":      v.Start.String(),
				"room":            v.Room,
				"is_substitution": v.IsSubstitution,
				"state":           string(v.State),
				"session_id":      v.SessionID,
			})
		}
		c.JSON(http.StatusOK, gin.H{"slots": out})
	})

	v1.GET("/sessions/gate", func(c *gin.Context) {
		date, err := time.Parse(dateLayout, c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		start, err := timetable.ParseClock(c.Query("time"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "time must be HH:MM"})
			return
		}
		key := session.Key{
			ClassID:   c.Query("class_id"),
			SubjectID: c.Query("subject_id"),
			Date:      date,
			Start:     start,
		}
		if b := c.Query("batch_id"); b != "" {
			key.BatchID = &b
		}
		state, err := sessionSvc.GateFor(c.Request.Context(), time.Now(), key)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": string(state)})
	})

	v1.POST("/sessions", func(c *gin.Context) {
		var req struct {
			ClassID        string  `json:"class_id" binding:"required"`
			SubjectID      string  `json:"subject_id" binding:"required"`
			BatchID        *string `json:"batch_id"`
			Date           string  `json:"date" binding:"required"`
			StartTime      string  `json:"start_time" binding:"required"`
			IsSubstitution bool    `json:"is_substitution"`
			Records        []struct {
				StudentID string `json:"student_id" binding:"required"`
				Status    string `json:"status" binding:"required"`
				Remark    string `json:"remark"`
			} `json:"records" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		start, err := timetable.ParseClock(req.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be HH:MM"})
			return
		}
		claims, _ := auth.FromContext(c)
		records := make([]session.Record, 0, len(req.Records))
		for _, rec := range req.Records {
			records = append(records, session.Record{
				StudentID: rec.StudentID,
				Status:    session.RecordStatus(rec.Status),
				Remark:    rec.Remark,
			})
		}
		created, err := sessionSvc.Submit(c.Request.Context(), time.Now(), session.SubmitInput{
			ClassID:        req.ClassID,
			SubjectID:      req.SubjectID,
			BatchID:        req.BatchID,
			FacultyID:      claims.Subject,
			Date:           date,
			Start:          start,
			IsSubstitution: req.IsSubstitution,
			Records:        records,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"session_id": created.ID,
			"created_at": created.CreatedAt,
		})
	})

	v1.GET("/sessions", func(c *gin.Context) {
		var from, to *time.Time
		if v := c.Query("from"); v != "" {
			if d, err := time.Parse(dateLayout, v); err == nil {
				from = &d
			}
		}
		if v := c.Query("to"); v != "" {
			if d, err := time.Parse(dateLayout, v); err == nil {
				to = &d
			}
		}
		list, err := sessions.List(c.Request.Context(), c.Query("class_id"), c.Query("subject_id"), from, to)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, s := range list {
			out = append(out, gin.H{
				"id":              s.ID,
				"class_id":        s.ClassID,
				"subject_id":      s.SubjectID,
				"batch_id":        s.BatchID,
				"faculty_id":      s.FacultyID,
				"date":            s.Date.Format(dateLayout),
				"start_time":      s.Start.String(),
				"is_substitution": s.IsSubstitution,
			})
		}
		c.JSON(http.StatusOK, gin.H{"sessions": out})
	})

	v1.GET("/sessions/:id/records", func(c *gin.Context) {
		recs, err := sessions.Records(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(recs))
		for _, rec := range recs {
			out = append(out, gin.H{
				"student_id": rec.StudentID,
				"status":     string(rec.Status),
				"remark":     rec.Remark,
			})
		}
		c.JSON(http.StatusOK, gin.H{"records": out})
	})

	// --- timetable ---

	v1.GET("/timetable/slots", func(c *gin.Context) {
		date, err := time.Parse(dateLayout, c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		claims, _ := auth.FromContext(c)
		facultyID := claims.Subject
		if claims.Role == auth.RoleAdmin && c.Query("faculty_id") != "" {
			facultyID = c.Query("faculty_id")
		}
		list, err := slots.SlotsFor(c.Request.Context(), facultyID, date)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, s := range list {
			out = append(out, slotJSON(s))
		}
		c.JSON(http.StatusOK, gin.H{"slots": out})
	})

	admin.POST("/timetable/slots", func(c *gin.Context) {
		var req struct {
			FacultyID string  `json:"faculty_id" binding:"required"`
			ClassID   string  `json:"class_id" binding:"required"`
			SubjectID string  `json:"subject_id" binding:"required"`
			BatchID   *string `json:"batch_id"`
			DayOfWeek string  `json:"day_of_week" binding:"required"`
			StartTime string  `json:"start_time" binding:"required"`
			Room      string  `json:"room_no"`
			ValidFrom string  `json:"valid_from" binding:"required"`
			ValidTo   string  `json:"valid_to" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		day := timetable.DayOfWeek(req.DayOfWeek)
		if !day.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day_of_week"})
			return
		}
		start, err := timetable.ParseClock(req.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be HH:MM"})
			return
		}
		from, err := time.Parse(dateLayout, req.ValidFrom)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid_from must be YYYY-MM-DD"})
			return
		}
		to, err := time.Parse(dateLayout, req.ValidTo)
		if err != nil || to.Before(from) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid_to must be YYYY-MM-DD on or after valid_from"})
			return
		}
		created, err := slots.Create(c.Request.Context(), timetable.Slot{
			FacultyID: req.FacultyID,
			ClassID:   req.ClassID,
			SubjectID: req.SubjectID,
			BatchID:   req.BatchID,
			Day:       day,
			Start:     start,
			Room:      req.Room,
			ValidFrom: from,
			ValidTo:   to,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, slotJSON(created))
	})

	admin.DELETE("/timetable/slots/:id", func(c *gin.Context) {
		if err := slots.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}
	log.Println("server exited")
	return nil
}
