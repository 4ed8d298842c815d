package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, syncer Synchronizer, reminders ReminderSource, auth Authenticator, logger *log.Logger) {
	e.PUT("/api/documents/:documentId", putDocument(syncer, auth, logger), GzipRequestMiddleware())
	e.GET("/api/documents/:documentId/tasks", getDocumentTasks(store, auth))
	e.GET("/api/reminders/due", getDueReminders(reminders, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func putDocument(syncer Synchronizer, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newSyncRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		actor, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		documentID := c.Param("documentId")
		if documentID == "" {
			metrics.SetErrorStage("missing_document_id")
			err = c.String(http.StatusBadRequest, "missing document id")
			return err
		}
		metrics.SetDocumentID(documentID)

		lr := io.LimitReader(c.Request().Body, putDocumentMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var req putDocumentRequest
		if decErr := dec.Decode(&req); decErr != nil {
			metrics.SetErrorStage("invalid_body")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}

		syncStart := time.Now()
		result, syncErr := syncer.SyncDocument(ctx, documentID, req.Content, actor)
		metrics.ObserveSync(time.Since(syncStart))
		if syncErr != nil {
			metrics.SetErrorStage("sync")
			c.Logger().Error(syncErr)
			err = c.JSON(http.StatusInternalServerError, putDocumentResponse{Error: "document sync failed"})
			return err
		}
		metrics.SetSkipped(result.Skipped)
		metrics.SetTasksFound(len(result.TaskIDs))

		err = c.JSON(http.StatusOK, putDocumentResponse{
			Skipped: result.Skipped,
			TaskIDs: result.TaskIDs,
			Content: result.Content,
		})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getDocumentTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization")); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		documentID := c.Param("documentId")
		if documentID == "" {
			return c.String(http.StatusBadRequest, "missing document id")
		}
		tasks, err := store.FetchTasks(ctx, documentID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func getDueReminders(reminders ReminderSource, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization")); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return c.JSON(http.StatusOK, reminders.DueReminders(ctx, time.Now()))
	}
}
