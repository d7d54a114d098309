package dashd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashd/httpapi"
	"github.com/openclaw/dashboard/dashd/statuscollector"
	"github.com/openclaw/dashboard/dashd/taskstore"
	"github.com/openclaw/dashboard/dashsdk"
)

// MaxCompletedLimit bounds the completed list page size.
const MaxCompletedLimit = 500

func (api *API) todos(rw http.ResponseWriter, r *http.Request) {
	tasks, err := api.Status.Todos(r.Context())
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	httpapi.Write(rw, http.StatusOK, dashsdk.TasksResponse{Tasks: tasks, Count: len(tasks)})
}

func (api *API) completedTasks(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := httpapi.NewQueryParamParser()
	limit := parser.Int(r.URL.Query(), statuscollector.DefaultCompletedLimit, 1, MaxCompletedLimit, "limit")
	if len(parser.Errors) > 0 {
		httpapi.Write(rw, http.StatusBadRequest, dashsdk.Response{
			Message:     "Invalid query parameters.",
			Validations: parser.Errors,
		})
		return
	}

	tasks, err := api.Tasks.Completed(ctx, limit)
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	httpapi.Write(rw, http.StatusOK, dashsdk.TasksResponse{Tasks: tasks, Count: len(tasks)})
}

func (api *API) createTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dashsdk.CreateTaskRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	task, err := api.Tasks.Create(ctx, req.Title, req.ListName, req.DueDate)
	if xerrors.Is(err, taskstore.ErrEmptyTitle) {
		httpapi.Write(rw, http.StatusBadRequest, dashsdk.Response{
			Message: "Task title must not be empty.",
			Validations: []dashsdk.ValidationError{
				{Field: "title", Detail: err.Error()},
			},
		})
		return
	}
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	api.Status.InvalidateTasks()
	httpapi.Write(rw, http.StatusCreated, task)
}

func (api *API) completeTask(rw http.ResponseWriter, r *http.Request) {
	task, found, err := api.Tasks.Complete(r.Context(), chi.URLParam(r, "task"))
	api.writeTaskMutation(rw, task, found, err)
}

func (api *API) reopenTask(rw http.ResponseWriter, r *http.Request) {
	task, found, err := api.Tasks.Reopen(r.Context(), chi.URLParam(r, "task"))
	api.writeTaskMutation(rw, task, found, err)
}

func (api *API) writeTaskMutation(rw http.ResponseWriter, task dashsdk.Task, found bool, err error) {
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	if !found {
		httpapi.ResourceNotFound(rw)
		return
	}
	api.Status.InvalidateTasks()
	httpapi.Write(rw, http.StatusOK, task)
}

func (api *API) deleteTask(rw http.ResponseWriter, r *http.Request) {
	removed, err := api.Tasks.Delete(r.Context(), chi.URLParam(r, "task"))
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	if !removed {
		httpapi.ResourceNotFound(rw)
		return
	}
	api.Status.InvalidateTasks()
	rw.WriteHeader(http.StatusNoContent)
}

// syncTasks accepts a snapshot pushed by an external task source.
func (api *API) syncTasks(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dashsdk.SyncTasksRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	if req.Pending == nil && req.Completed == nil {
		httpapi.Write(rw, http.StatusBadRequest, dashsdk.Response{
			Message: "At least one of pending or completed is required.",
		})
		return
	}

	var res dashsdk.SyncTasksResponse
	defer api.Status.InvalidateTasks()
	if req.Pending != nil {
		pending, err := api.Tasks.ReconcilePending(ctx, *req.Pending)
		if err != nil {
			httpapi.InternalServerError(rw, err)
			return
		}
		res.Pending = &pending
	}
	if req.Completed != nil {
		completed, err := api.Tasks.ReconcileCompleted(ctx, *req.Completed)
		if err != nil {
			httpapi.InternalServerError(rw, err)
			return
		}
		res.Completed = &completed
	}
	httpapi.Write(rw, http.StatusOK, res)
}
