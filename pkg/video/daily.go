package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
)

// Room 视频房间信息
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RoomProvider 视频房间服务商接口
// 生产环境使用 Daily REST API，测试中以内存实现替换
type RoomProvider interface {
	GetOrCreateRoom(ctx context.Context, name string) (*Room, error)
	DeleteRoom(ctx context.Context, name string) error
	CreateMeetingToken(ctx context.Context, roomName, userID string, isOwner bool) (string, error)
}

// DailyClient Daily REST API 客户端
type DailyClient struct {
	baseURL    string
	apiKey     string
	roomExpiry time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDailyClient 创建 Daily 客户端
func NewDailyClient(cfg *config.VideoConfig, logger *zap.Logger) *DailyClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DailyClient{
		baseURL:    cfg.APIBaseURL,
		apiKey:     cfg.APIKey,
		roomExpiry: cfg.RoomExpiry,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetOrCreateRoom 按名称获取房间，不存在则创建
func (c *DailyClient) GetOrCreateRoom(ctx context.Context, name string) (*Room, error) {
	room, err := c.getRoom(ctx, name)
	if err == nil {
		return room, nil
	}
	return c.createRoom(ctx, name)
}

func (c *DailyClient) getRoom(ctx context.Context, name string) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodGet, "/rooms/"+name, nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *DailyClient) createRoom(ctx context.Context, name string) (*Room, error) {
	body := map[string]interface{}{
		"name":    name,
		"privacy": "private",
		"properties": map[string]interface{}{
			"exp":               time.Now().Add(c.roomExpiry).Unix(),
			"eject_at_room_exp": true,
			"enable_chat":       true,
		},
	}
	var room Room
	if err := c.do(ctx, http.MethodPost, "/rooms", body, &room); err != nil {
		return nil, err
	}
	c.logger.Info("视频房间创建成功", zap.String("room", room.Name))
	return &room, nil
}

// DeleteRoom 删除房间，房间不存在视为成功
func (c *DailyClient) DeleteRoom(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "/rooms/"+name, nil, nil)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// CreateMeetingToken 为用户签发房间准入 token，isOwner 控制主持人权限
func (c *DailyClient) CreateMeetingToken(ctx context.Context, roomName, userID string, isOwner bool) (string, error) {
	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"room_name": roomName,
			"user_id":   userID,
			"is_owner":  isOwner,
			"exp":       time.Now().Add(c.roomExpiry).Unix(),
		},
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/meeting-tokens", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// APIError Daily API 非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("视频服务商返回异常状态 %d: %s", e.StatusCode, e.Body)
}

func asAPIError(err error, target **APIError) bool {
	apiErr, ok := err.(*APIError)
	if ok {
		*target = apiErr
	}
	return ok
}

func (c *DailyClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求视频服务商失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}
