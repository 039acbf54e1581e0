package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/radbot/radbot/internal/todo"
)

// RegisterBuiltins installs the standard tool set.
func RegisterBuiltins(r *Registry) {
	r.Register(memorySearchTool())
	r.Register(memoryStoreTool())
	r.Register(getTimeTool())
	r.Register(todoAddTool())
	r.Register(todoListTool())
	r.Register(reminderSetTool())
	r.Register(sendNotificationTool())
}

func memorySearchTool() *Descriptor {
	return &Descriptor{
		Name:        "memory_search",
		Description: "Search long-term memory for entries relevant to a query. Returns the top matches with scores.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text search query",
				},
				"scope": map[string]any{
					"type":        "string",
					"description": "Restrict to one agent's memories; defaults to the calling agent's scope",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Maximum results to return (default 5)",
				},
			},
			"required": []string{"query"},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			if ic.Memory == nil {
				return Fail(KindVectorError, "memory is not configured")
			}
			query, _ := args["query"].(string)
			scope := ic.MemoryScope
			if s, ok := args["scope"].(string); ok && s != "" {
				scope = s
			}
			topK := 0
			if k, ok := args["top_k"].(float64); ok {
				topK = int(k)
			}
			items, err := ic.Memory.Search(ctx, query, scope, topK)
			if err != nil {
				return Fail(KindVectorError, "memory search failed: %v", err)
			}
			results := make([]map[string]any, 0, len(items))
			for _, item := range items {
				results = append(results, map[string]any{
					"id":           item.ID,
					"text":         item.Text,
					"source_agent": item.SourceAgent,
					"memory_type":  item.MemoryType,
					"score":        item.Score,
				})
			}
			return OK(map[string]any{"results": results, "count": len(results)})
		},
	}
}

func memoryStoreTool() *Descriptor {
	return &Descriptor{
		Name:        "memory_store",
		Description: "Store a fact or observation in long-term memory under the calling agent's scope.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The content to remember",
				},
				"memory_type": map[string]any{
					"type":        "string",
					"description": "Category such as fact, preference, or event",
				},
			},
			"required": []string{"text"},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			if ic.Memory == nil {
				return Fail(KindVectorError, "memory is not configured")
			}
			text, _ := args["text"].(string)
			if text == "" {
				return Fail(KindToolError, "text must not be empty")
			}
			memoryType, _ := args["memory_type"].(string)
			if memoryType == "" {
				memoryType = "fact"
			}
			id, err := ic.Memory.Store(ctx, text, ic.MemoryScope, memoryType)
			if err != nil {
				return Fail(KindVectorError, "memory store failed: %v", err)
			}
			return OK(map[string]any{"id": id})
		},
	}
}

func getTimeTool() *Descriptor {
	return &Descriptor{
		Name:        "get_time",
		Description: "Get the current date and time, optionally in a named IANA timezone.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name such as Europe/Berlin; defaults to UTC",
				},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			now := time.Now
			if ic.Now != nil {
				now = ic.Now
			}
			loc := time.UTC
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return Fail(KindToolError, "unknown timezone %q", tz)
				}
				loc = parsed
			}
			t := now().In(loc)
			return OK(map[string]any{
				"time":     t.Format(time.RFC3339),
				"weekday":  t.Weekday().String(),
				"timezone": loc.String(),
			})
		},
	}
}

func todoAddTool() *Descriptor {
	return &Descriptor{
		Name:        "todo_add",
		Description: "Add a task to the user's todo list.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short task title",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Optional free-form notes",
				},
				"due_at": map[string]any{
					"type":        "string",
					"description": "Optional RFC3339 due time",
				},
			},
			"required": []string{"title"},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			if ic.Todo == nil {
				return Fail(KindToolError, "todos are not configured")
			}
			req := &todo.CreateTaskRequest{}
			req.Title, _ = args["title"].(string)
			req.Notes, _ = args["notes"].(string)
			if raw, ok := args["due_at"].(string); ok && raw != "" {
				due, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return Fail(KindToolError, "due_at must be RFC3339: %v", err)
				}
				req.DueAt = &due
			}
			task, err := ic.Todo.AddTask(ctx, req)
			if err != nil {
				return Fail(KindToolError, "add task failed: %v", err)
			}
			return OK(map[string]any{"id": task.ID, "title": task.Title})
		},
	}
}

func todoListTool() *Descriptor {
	return &Descriptor{
		Name:        "todo_list",
		Description: "List the user's open tasks. Set include_done to also show completed ones.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_done": map[string]any{
					"type":        "boolean",
					"description": "Include completed tasks",
				},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			if ic.Todo == nil {
				return Fail(KindToolError, "todos are not configured")
			}
			includeDone, _ := args["include_done"].(bool)
			tasks, err := ic.Todo.ListTasks(ctx, "", includeDone)
			if err != nil {
				return Fail(KindToolError, "list tasks failed: %v", err)
			}
			out := make([]map[string]any, 0, len(tasks))
			for _, task := range tasks {
				entry := map[string]any{
					"id":    task.ID,
					"title": task.Title,
					"done":  task.Done,
				}
				if task.DueAt != nil {
					entry["due_at"] = task.DueAt.Format(time.RFC3339)
				}
				out = append(out, entry)
			}
			return OK(map[string]any{"tasks": out, "count": len(out)})
		},
	}
}

func sendNotificationTool() *Descriptor {
	return &Descriptor{
		Name:        "send_notification",
		Description: "Push a notification to the user's configured notification service.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "Notification body",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Optional short title",
				},
			},
			"required": []string{"message"},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			url := ic.Config.String("integrations", "notify_url", "")
			if url == "" {
				return Fail(KindToolError, "notifications are not configured: integrations.notify_url is empty")
			}
			message, _ := args["message"].(string)
			if message == "" {
				return Fail(KindToolError, "message must not be empty")
			}
			credName := ic.Config.String("integrations", "notify_credential", "notify_token")
			token, fail := RevealCredential(ctx, ic, credName)
			if fail != nil {
				return fail
			}
			title, _ := args["title"].(string)
			body, err := json.Marshal(map[string]string{"title": title, "message": message})
			if err != nil {
				return Fail(KindToolError, "encode notification: %v", err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return Fail(KindToolError, "build notification request: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return Fail(KindToolError, "notification delivery failed: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return Fail(KindToolError, "notification service returned %s", resp.Status)
			}
			return OK(map[string]any{"delivered": true})
		},
	}
}

func reminderSetTool() *Descriptor {
	return &Descriptor{
		Name:        "reminder_set",
		Description: "Schedule a reminder that will be delivered to this chat session at the given time.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "What to remind about",
				},
				"remind_at": map[string]any{
					"type":        "string",
					"description": "RFC3339 time in the future",
				},
			},
			"required": []string{"message", "remind_at"},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			if ic.Todo == nil {
				return Fail(KindToolError, "reminders are not configured")
			}
			message, _ := args["message"].(string)
			raw, _ := args["remind_at"].(string)
			remindAt, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return Fail(KindToolError, "remind_at must be RFC3339: %v", err)
			}
			reminder, err := ic.Todo.AddReminder(ctx, &todo.CreateReminderRequest{
				Message:   message,
				RemindAt:  remindAt,
				SessionID: ic.SessionID,
			})
			if err != nil {
				return Fail(KindToolError, "set reminder failed: %v", err)
			}
			return OK(map[string]any{
				"id":        reminder.ID,
				"remind_at": reminder.RemindAt.Format(time.RFC3339),
			})
		},
	}
}
