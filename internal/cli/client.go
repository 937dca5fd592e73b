package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaiso/Climatica/internal/domain"
)

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DataPage — страница собранных данных модуля.
type DataPage struct {
	Data           []map[string]any `json:"data"`
	NextStartIndex *int             `json:"next_start_index"`
}

// --- Client ---

// Client — HTTP-клиент для data API Climatica.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. Пустой token — без авторизации.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Reports ---

// GetAggregatedReport возвращает агрегированный отчёт подсистемы.
func (c *Client) GetAggregatedReport(subsystem string) (*domain.AggregatedReport, error) {
	var report domain.AggregatedReport
	err := c.get("/api/v1/reports/"+url.PathEscape(subsystem), &report)
	return &report, err
}

// ListExecutions возвращает последние выполнения подсистемы.
func (c *Client) ListExecutions(subsystem string, limit int) ([]domain.LastExecution, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var executions []domain.LastExecution
	err := c.list("/api/v1/reports/"+url.PathEscape(subsystem)+"/executions", params, &executions)
	return executions, err
}

// --- Data ---

// GetDataPage возвращает страницу собранных данных модуля.
func (c *Client) GetDataPage(module string, startIndex, limit int) (*DataPage, error) {
	params := url.Values{}
	params.Set("startIndex", strconv.Itoa(startIndex))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	resp, err := c.do(http.MethodGet, "/api/v1/data/"+url.PathEscape(module)+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var page DataPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}

// Alive проверяет доступность API.
func (c *Client) Alive() error {
	resp, err := c.do(http.MethodGet, "/alive")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
