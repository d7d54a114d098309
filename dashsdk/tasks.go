package dashsdk

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultListName is the list a task lands in when no list is given.
const DefaultListName = "默认列表"

// TaskSource records where a task came from. Reconciliation only ever
// replaces tasks tagged TaskSourceExternalSync.
type TaskSource string

const (
	TaskSourceLocal        TaskSource = "local"
	TaskSourceExternalSync TaskSource = "external_sync"
	TaskSourceSeeded       TaskSource = "seeded"
)

// Task is a single to-do item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	DueDate     string     `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	ListName    string     `json:"list_name"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	Source      TaskSource `json:"source"`
}

// ExternalTask is a record from an external task source after
// normalization. CompletedAt is kept verbatim; the store parses it.
type ExternalTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	DueDate     string `json:"due_date,omitempty"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
	ListName    string `json:"list_name,omitempty"`
}

type CreateTaskRequest struct {
	Title    string `json:"title" validate:"notblank,max=500"`
	ListName string `json:"list_name,omitempty" validate:"max=200"`
	DueDate  string `json:"due_date,omitempty" validate:"max=100"`
}

type TasksResponse struct {
	Tasks []Task `json:"tasks"`
	Count int    `json:"count"`
}

// SyncTasksRequest pushes a snapshot from an external task source. A nil
// slice leaves that collection untouched; an empty slice clears its
// externally synced entries.
type SyncTasksRequest struct {
	Pending   *[]ExternalTask `json:"pending,omitempty"`
	Completed *[]ExternalTask `json:"completed,omitempty"`
}

type SyncTasksResponse struct {
	Pending   *ReconcileResult `json:"pending,omitempty"`
	Completed *ReconcileResult `json:"completed,omitempty"`
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Kept     int `json:"kept"`
	Synced   int `json:"synced"`
	Dropped  int `json:"dropped"`
	Removed  int `json:"removed"`
	Received int `json:"received"`
}

func (c *Client) Todos(ctx context.Context) (TasksResponse, error) {
	return makeRequest[TasksResponse](ctx, c, requestArgs{
		Method:     http.MethodGet,
		URL:        "/api/tasks/todos",
		ExpectCode: http.StatusOK,
	})
}

func (c *Client) CompletedTasks(ctx context.Context, limit int) (TasksResponse, error) {
	return makeRequest[TasksResponse](ctx, c, requestArgs{
		Method:     http.MethodGet,
		URL:        fmt.Sprintf("/api/tasks/completed?limit=%d", limit),
		ExpectCode: http.StatusOK,
	})
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error) {
	return makeRequest[Task](ctx, c, requestArgs{
		Method:     http.MethodPost,
		URL:        "/api/tasks/todos",
		Body:       req,
		ExpectCode: http.StatusCreated,
	})
}

func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	return makeRequest[Task](ctx, c, requestArgs{
		Method:     http.MethodPost,
		URL:        fmt.Sprintf("/api/tasks/todos/%s/complete", id),
		ExpectCode: http.StatusOK,
	})
}

func (c *Client) ReopenTask(ctx context.Context, id string) (Task, error) {
	return makeRequest[Task](ctx, c, requestArgs{
		Method:     http.MethodPost,
		URL:        fmt.Sprintf("/api/tasks/completed/%s/reopen", id),
		ExpectCode: http.StatusOK,
	})
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := makeRequest[noResponse](ctx, c, requestArgs{
		Method:     http.MethodDelete,
		URL:        fmt.Sprintf("/api/tasks/todos/%s", id),
		ExpectCode: http.StatusNoContent,
	})
	return err
}

func (c *Client) SyncTasks(ctx context.Context, req SyncTasksRequest) (SyncTasksResponse, error) {
	return makeRequest[SyncTasksResponse](ctx, c, requestArgs{
		Method:     http.MethodPost,
		URL:        "/api/tasks/sync",
		Body:       req,
		ExpectCode: http.StatusOK,
	})
}
