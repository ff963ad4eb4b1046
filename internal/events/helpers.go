package events

import (
	"encoding/json"
	"fmt"
)

// SetPassStartedData sets the Data field with PassStartedData in a type-safe way.
func (e *Event) SetPassStartedData(data PassStartedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PassStartedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPassStartedData retrieves PassStartedData from the Data field.
func (e *Event) GetPassStartedData() (*PassStartedData, error) {
	var data PassStartedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PassStartedData: %w", err)
	}
	return &data, nil
}

// SetPassCompletedData sets the Data field with PassCompletedData in a type-safe way.
func (e *Event) SetPassCompletedData(data PassCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PassCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPassCompletedData retrieves PassCompletedData from the Data field.
func (e *Event) GetPassCompletedData() (*PassCompletedData, error) {
	var data PassCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PassCompletedData: %w", err)
	}
	return &data, nil
}

// SetPassFailedData sets the Data field with PassFailedData in a type-safe way.
func (e *Event) SetPassFailedData(data PassFailedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PassFailedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPassFailedData retrieves PassFailedData from the Data field.
func (e *Event) GetPassFailedData() (*PassFailedData, error) {
	var data PassFailedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PassFailedData: %w", err)
	}
	return &data, nil
}

// SetProgressData sets the Data field with ProgressData in a type-safe way.
func (e *Event) SetProgressData(data ProgressData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ProgressData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetProgressData retrieves ProgressData from the Data field.
func (e *Event) GetProgressData() (*ProgressData, error) {
	var data ProgressData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ProgressData: %w", err)
	}
	return &data, nil
}

// SetDataToleranceData sets the Data field with DataToleranceData in a type-safe way.
func (e *Event) SetDataToleranceData(data DataToleranceData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert DataToleranceData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetDataToleranceData retrieves DataToleranceData from the Data field.
func (e *Event) GetDataToleranceData() (*DataToleranceData, error) {
	var data DataToleranceData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse DataToleranceData: %w", err)
	}
	return &data, nil
}

// SetClusterFormedData sets the Data field with ClusterFormedData in a type-safe way.
func (e *Event) SetClusterFormedData(data ClusterFormedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ClusterFormedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetClusterFormedData retrieves ClusterFormedData from the Data field.
func (e *Event) GetClusterFormedData() (*ClusterFormedData, error) {
	var data ClusterFormedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ClusterFormedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
