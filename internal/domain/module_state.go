package domain

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// ModuleState — долговременное состояние модуля.
//
// Загружается на стадии Restored и сохраняется на стадии StateSaved.
// Ключи JSON совпадают с ключами state_struct в конфигурации модуля.
type ModuleState struct {
	// LastRequest — время последнего обращения к источнику (nil — ни разу).
	LastRequest *time.Time `json:"last_request"`

	// UpdateFrequency — как часто модуль должен получать новые данные.
	UpdateFrequency TimeSpan `json:"update_frequency"`

	// BackoffTime — текущая задержка перед повтором после ошибки.
	BackoffTime TimeSpan `json:"backoff_time"`

	// RestartRequired — модуль упал в прошлый раз и должен повторить запуск.
	RestartRequired bool `json:"restart_required"`

	// Error — ошибка текущего выполнения (nil — ошибок не было).
	Error *ErrorInfo `json:"error"`

	// ErrorCounts — счётчики ошибок по классам за всё время.
	ErrorCounts map[string]int `json:"errors"`

	// LastErrorClass — класс последней сохранённой ошибки.
	LastErrorClass string `json:"last_error"`

	// Счётчики коллектора.
	DataElements     *int `json:"data_elements"`
	InsertedElements *int `json:"inserted_elements"`

	// Счётчики конвертера.
	ElementsToConvert *int `json:"elements_to_convert,omitempty"`
	ConvertedElements *int `json:"converted_elements,omitempty"`

	// StartIndex — курсор постраничного чтения для конвертеров.
	StartIndex int `json:"start_index,omitempty"`

	// Cursor — курсоры конкретного модуля (indicator_index, begin_date, ...).
	Cursor map[string]int `json:"cursor,omitempty"`
}

// Минимальный набор ключей state_struct.
var (
	// RequiredStateKeys — обязательные ключи для любого модуля.
	RequiredStateKeys = []string{
		"last_request",
		"update_frequency",
		"backoff_time",
		"restart_required",
		"error",
		"errors",
		"last_error",
		"data_elements",
		"inserted_elements",
	}

	// RequiredConverterStateKeys — дополнительные ключи для конвертеров.
	RequiredConverterStateKeys = []string{
		"elements_to_convert",
		"converted_elements",
		"start_index",
	}
)

// MissingStateKeys возвращает ключи, отсутствующие в объявленной схеме.
func MissingStateKeys(schema map[string]any, kind Kind) []string {
	required := RequiredStateKeys
	if kind == KindConverter {
		required = append(append([]string{}, RequiredStateKeys...), RequiredConverterStateKeys...)
	}

	var missing []string
	for _, key := range required {
		if _, ok := schema[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// StateFromSchema строит начальное состояние из объявленной схемы.
//
// Возвращает ErrInitialization, если схема неполная или не декодируется.
func StateFromSchema(schema map[string]any, kind Kind) (ModuleState, error) {
	if missing := MissingStateKeys(schema, kind); len(missing) > 0 {
		return ModuleState{}, fmt.Errorf("%w: state_struct is missing keys %v", ErrInitialization, missing)
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return ModuleState{}, fmt.Errorf("%w: marshal state_struct: %v", ErrInitialization, err)
	}

	var state ModuleState
	if err := json.Unmarshal(raw, &state); err != nil {
		return ModuleState{}, fmt.Errorf("%w: decode state_struct: %v", ErrInitialization, err)
	}
	state.normalize()
	return state, nil
}

// normalize заполняет nil-карты.
func (s *ModuleState) normalize() {
	if s.ErrorCounts == nil {
		s.ErrorCounts = make(map[string]int)
	}
	if s.Cursor == nil {
		s.Cursor = make(map[string]int)
	}
}

// Normalize — экспортируемая версия normalize для загрузчиков состояния.
func (s *ModuleState) Normalize() {
	s.normalize()
}

// Clone возвращает глубокую копию состояния.
func (s ModuleState) Clone() ModuleState {
	c := s
	if s.LastRequest != nil {
		t := *s.LastRequest
		c.LastRequest = &t
	}
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	c.ErrorCounts = maps.Clone(s.ErrorCounts)
	c.Cursor = maps.Clone(s.Cursor)
	c.DataElements = cloneInt(s.DataElements)
	c.InsertedElements = cloneInt(s.InsertedElements)
	c.ElementsToConvert = cloneInt(s.ElementsToConvert)
	c.ConvertedElements = cloneInt(s.ConvertedElements)
	c.normalize()
	return c
}

// ResetVolatile сбрасывает поля, относящиеся только к текущему выполнению.
func (s *ModuleState) ResetVolatile() {
	s.Error = nil
	s.DataElements = nil
	s.InsertedElements = nil
	s.ElementsToConvert = nil
	s.ConvertedElements = nil
}

// CursorValue возвращает значение курсора и признак его наличия.
func (s *ModuleState) CursorValue(key string) (int, bool) {
	v, ok := s.Cursor[key]
	return v, ok
}

// SetCursor устанавливает курсор.
func (s *ModuleState) SetCursor(key string, value int) {
	s.normalize()
	s.Cursor[key] = value
}

// ClearCursor удаляет курсор.
func (s *ModuleState) ClearCursor(key string) {
	delete(s.Cursor, key)
}

// IntPtr возвращает указатель на копию v.
func IntPtr(v int) *int {
	return &v
}

// IntValue возвращает значение указателя или 0.
func IntValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
