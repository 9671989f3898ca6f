package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"rollbook/internal/attendance"
)

var logger = loggo.GetLogger("rollbook.httpapi")

// Handler exposes the attendance service over JSON.
type Handler struct {
	svc *attendance.Service
}

// New creates a handler.
func New(svc *attendance.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/cohort", h.Cohort)

	v1.GET("/students", h.ListStudents)
	v1.POST("/students", h.AddStudent)
	v1.GET("/students/:id", h.GetStudent)
	v1.PUT("/students/:id", h.UpdateStudent)
	v1.DELETE("/students/:id", h.DeleteStudent)

	v1.POST("/attendance", h.MarkAttendance)
	v1.GET("/attendance", h.AttendanceByDate)
	v1.GET("/attendance/sheet", h.RosterSheet)
}

type studentRequest struct {
	Name string `json:"name" binding:"required"`
	Roll string `json:"roll" binding:"required"`
}

type markRequest struct {
	Date    string      `json:"date"`
	All     string      `json:"all"`
	Entries []markEntry `json:"entries"`
}

type markEntry struct {
	StudentID int64  `json:"student_id"`
	Status    string `json:"status"`
}

func (h *Handler) Cohort(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cohort": h.svc.Cohort(), "today": h.svc.Today()})
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.svc.ListStudents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) AddStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and roll are required"})
		return
	}
	id, err := h.svc.AddStudent(c.Request.Context(), req.Name, req.Roll)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	student, err := h.svc.GetStudent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if student == nil {
		respondError(c, attendance.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and roll are required"})
		return
	}
	if err := h.svc.UpdateStudent(c.Request.Context(), id, req.Name, req.Roll); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteStudent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAttendance records a bulk of statuses for one date. With "all" set
// every roster student gets that status and entries are ignored.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Debugf("binding attendance request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Date == "" {
		req.Date = h.svc.Today()
	}
	ctx := c.Request.Context()

	if req.All != "" {
		status, ok := attendance.ParseStatus(req.All)
		if !ok {
			respondError(c, errors.Annotatef(attendance.ErrValidation, "status %q", req.All))
			return
		}
		if err := h.svc.MarkAll(ctx, req.Date, status); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	marks := make([]attendance.Mark, 0, len(req.Entries))
	for _, e := range req.Entries {
		status, ok := attendance.ParseStatus(e.Status)
		if !ok {
			respondError(c, errors.Annotatef(attendance.ErrValidation, "status %q for student %d", e.Status, e.StudentID))
			return
		}
		marks = append(marks, attendance.Mark{StudentID: e.StudentID, Status: status})
	}
	if err := h.svc.MarkAttendanceBulk(ctx, marks, req.Date); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AttendanceByDate(c *gin.Context) {
	date := c.DefaultQuery("date", h.svc.Today())
	records, err := h.svc.AttendanceByDate(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "records": records})
}

func (h *Handler) RosterSheet(c *gin.Context) {
	date := c.DefaultQuery("date", h.svc.Today())
	sheet, err := h.svc.RosterSheet(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "students": sheet})
}

func studentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, attendance.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrDuplicateRoll):
		status = http.StatusConflict
	case errors.Is(err, attendance.ErrReferential):
		status = http.StatusUnprocessableEntity
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": attendance.Message(err)})
}
