package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/jobs"
	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/gin-gonic/gin"
)

const maxReceiptBytes = 10 << 20

// dateRange parses ?from= and ?to= (inclusive days, default today) into [start, end)
func (h *Handler) dateRange(c *gin.Context) (time.Time, time.Time, error) {
	loc := h.Scheduler.Location()
	today, _ := models.DayBounds(time.Now().In(loc))
	from, to := today, today
	if raw := c.Query("from"); raw != "" {
		d, err := models.ParseDate(raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from, to = d, d
	}
	if raw := c.Query("to"); raw != "" {
		d, err := models.ParseDate(raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, models.Invalid(models.ErrInvalidDate, "to is before from")
	}
	_, end := models.DayBounds(to)
	return from, end, nil
}

// ListJobs returns every job in the date range
func (h *Handler) ListJobs(c *gin.Context) {
	from, to, err := h.dateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := h.Jobs.ListRange(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

func (h *Handler) DeleteJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Lifecycle.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted"})
}

// MyJobs returns the device employee's jobs for ?date= (default today)
func (h *Handler) MyJobs(c *gin.Context) {
	emp := currentEmployee(c)
	loc := h.Scheduler.Location()
	day := time.Now().In(loc)
	if raw := c.Query("date"); raw != "" {
		d, err := models.ParseDate(raw, loc)
		if err != nil {
			respondError(c, err)
			return
		}
		day = d
	}
	from, to := models.DayBounds(day)
	list, err := h.Jobs.ListForEmployee(c.Request.Context(), emp.ID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": models.FormatDate(from), "jobs": list})
}

// CompleteJob marks one of the device employee's jobs done. Accepts a
// multipart form with an optional "receipt" image and "note".
func (h *Handler) CompleteJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	emp := currentEmployee(c)
	ctx := c.Request.Context()

	job, err := h.Jobs.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if job.EmployeeID != emp.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Job belongs to another employee"})
		return
	}

	var receipt []byte
	if fh, err := c.FormFile("receipt"); err == nil {
		if fh.Size > maxReceiptBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "receipt is larger than 10MB"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open receipt"})
			return
		}
		receipt, err = io.ReadAll(io.LimitReader(f, maxReceiptBytes))
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read receipt"})
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Lifecycle.Complete(ctx, jobs.CompleteRequest{
		JobID:   id,
		Receipt: receipt,
		Note:    c.PostForm("note"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
