package pipeline

import (
	"errors"
	"fmt"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/detection"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	ErrorImageLoad              ErrorCode = "IMAGE_LOAD_FAILED"
	ErrorClassifierLoad         ErrorCode = "CLASSIFIER_LOAD_FAILED"
	ErrorNoPlateFound           ErrorCode = "NO_PLATE_FOUND"
	ErrorInsufficientCandidates ErrorCode = "INSUFFICIENT_CANDIDATES"
	ErrorInvalidCrop            ErrorCode = "INVALID_CROP"
	ErrorDetectionFailed        ErrorCode = "DETECTION_FAILED"
	ErrorNormalizationFailed    ErrorCode = "NORMALIZATION_FAILED"
	ErrorRecognitionFailed      ErrorCode = "RECOGNITION_FAILED"
	ErrorCancelled              ErrorCode = "CANCELLED"
)

const (
	StageLoad      = "load"
	StageDetect    = "detect"
	StageNormalize = "normalize"
	StagePreview   = "preview"
	StageRecognize = "recognize"
)

// ErrImageNotFound covers both a missing path and a file that does not decode.
var ErrImageNotFound = errors.New("image not found or undecodable")

// StageError ends a run. Message is the text shown to the user.
type StageError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// ToMap converts error to log fields
func (e *StageError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"stage":      e.Stage,
		"message":    e.Message,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// CodeOf returns the code of the first StageError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Code, true
	}
	return "", false
}

func NewImageLoadError(path string, cause error) *StageError {
	return &StageError{
		Code:    ErrorImageLoad,
		Stage:   StageLoad,
		Message: fmt.Sprintf("Не удалось загрузить изображение по пути: %s", path),
		Details: map[string]interface{}{"path": path},
		Cause:   fmt.Errorf("%w: %v", ErrImageNotFound, cause),
	}
}

func NewClassifierLoadError(path string, cause error) *StageError {
	return &StageError{
		Code:    ErrorClassifierLoad,
		Stage:   StageDetect,
		Message: fmt.Sprintf("Не удалось загрузить каскад: %s", path),
		Details: map[string]interface{}{"cascade": path},
		Cause:   cause,
	}
}

func newCancelledError(stage string, cause error) *StageError {
	return &StageError{
		Code:    ErrorCancelled,
		Stage:   stage,
		Message: "Обработка прервана.",
		Cause:   cause,
	}
}

// newDetectionError classifies failures from detection, selection and cropping.
func newDetectionError(cause error, candidates int) *StageError {
	details := map[string]interface{}{"candidates": candidates}

	var loadErr *detection.LoadError
	if errors.As(cause, &loadErr) {
		return NewClassifierLoadError(loadErr.Path, cause)
	}

	switch {
	case errors.Is(cause, detection.ErrNoCandidates):
		return &StageError{
			Code:    ErrorNoPlateFound,
			Stage:   StageDetect,
			Message: "Номерной знак не обнаружен.",
			Details: details,
			Cause:   cause,
		}
	case errors.Is(cause, detection.ErrInsufficientCandidates):
		return &StageError{
			Code:    ErrorInsufficientCandidates,
			Stage:   StageDetect,
			Message: fmt.Sprintf("Недостаточно кандидатов для выбора номерного знака: найдено %d", candidates),
			Details: details,
			Cause:   cause,
		}
	case errors.Is(cause, detection.ErrInvalidCrop):
		return &StageError{
			Code:    ErrorInvalidCrop,
			Stage:   StageDetect,
			Message: "Область номерного знака слишком мала для обрезки.",
			Details: details,
			Cause:   cause,
		}
	default:
		return &StageError{
			Code:    ErrorDetectionFailed,
			Stage:   StageDetect,
			Message: fmt.Sprintf("Ошибка поиска номерного знака: %v", cause),
			Details: details,
			Cause:   cause,
		}
	}
}

func newNormalizationError(cause error) *StageError {
	return &StageError{
		Code:    ErrorNormalizationFailed,
		Stage:   StageNormalize,
		Message: fmt.Sprintf("Не удалось подготовить изображение номерного знака: %v", cause),
		Cause:   cause,
	}
}

func newRecognitionError(cause error) *StageError {
	return &StageError{
		Code:    ErrorRecognitionFailed,
		Stage:   StageRecognize,
		Message: fmt.Sprintf("Ошибка распознавания текста: %v", cause),
		Cause:   cause,
	}
}
