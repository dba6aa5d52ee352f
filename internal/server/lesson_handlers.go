package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mkats/lessonledger/internal/middleware"
	"github.com/mkats/lessonledger/internal/models"
)

type scheduleLessonRequest struct {
	Student   string `json:"student"`
	StartTime int64  `json:"start_time"`
	Duration  int64  `json:"duration"`
	Price     int64  `json:"price"`
}

type cancelLessonRequest struct {
	// CurrentTime lets callers supply the cancellation clock explicitly,
	// matching the engine contract. Zero means "now".
	CurrentTime int64 `json:"current_time"`
}

type lessonResponse struct {
	ID            int64  `json:"id"`
	Teacher       string `json:"teacher"`
	Student       string `json:"student"`
	StartTime     int64  `json:"start_time"`
	Duration      int64  `json:"duration"`
	Price         int64  `json:"price"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	CreatedAt     int64  `json:"created_at"`
}

func toLessonResponse(l *models.Lesson) lessonResponse {
	return lessonResponse{
		ID:            l.ID,
		Teacher:       l.Teacher,
		Student:       l.Student,
		StartTime:     l.StartTime,
		Duration:      l.Duration,
		Price:         l.Price,
		Status:        string(l.Status),
		PaymentStatus: string(l.PaymentStatus),
		CreatedAt:     l.CreatedAt,
	}
}

// lessonID parses the {id} path value.
func lessonID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *Server) handleRegisterTeacher(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserID(r.Context())
	if err := s.engine.RegisterAsTeacher(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"teacher": caller})
}

func (s *Server) handleScheduleLesson(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserID(r.Context())

	var req scheduleLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Student == "" {
		badRequest(w, "student is required")
		return
	}
	if req.Duration <= 0 {
		badRequest(w, "duration must be positive")
		return
	}
	if req.Price < 0 {
		badRequest(w, "price must be non-negative")
		return
	}

	id, err := s.engine.ScheduleLesson(r.Context(), caller, req.Student, req.StartTime, req.Duration, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"lesson_id": id})
}

func (s *Server) handlePayLesson(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		badRequest(w, "invalid lesson id")
		return
	}
	caller := middleware.GetUserID(r.Context())
	if err := s.engine.PayForLesson(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"lesson_id": id})
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		badRequest(w, "invalid lesson id")
		return
	}
	caller := middleware.GetUserID(r.Context())
	if err := s.engine.CompleteLesson(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"lesson_id": id})
}

func (s *Server) handleCancelLesson(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		badRequest(w, "invalid lesson id")
		return
	}

	// The body is optional; an empty body means "cancel now".
	var req cancelLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body")
		return
	}
	if req.CurrentTime == 0 {
		req.CurrentTime = time.Now().Unix()
	}

	caller := middleware.GetUserID(r.Context())
	if err := s.engine.CancelLesson(r.Context(), caller, id, req.CurrentTime); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"lesson_id": id})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserID(r.Context())
	amount, err := s.engine.WithdrawBalance(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		badRequest(w, "invalid lesson id")
		return
	}
	lesson, err := s.engine.GetLesson(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonResponse(lesson))
}

func (s *Server) handleTeacherBalance(w http.ResponseWriter, r *http.Request) {
	teacher := r.PathValue("id")
	balance, err := s.engine.GetTeacherBalance(r.Context(), teacher)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teacher": teacher, "balance": balance})
}

func (s *Server) handleTeacherLessons(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.GetTeacherLessons(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"lesson_ids": ids})
}

func (s *Server) handleStudentLessons(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.GetStudentLessons(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"lesson_ids": ids})
}
