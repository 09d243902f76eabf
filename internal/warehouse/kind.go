package warehouse

import (
	"math/big"
	"strconv"
	"strings"
	"time"
)

var kindsByType = map[string]ColumnKind{
	"NUMBER": KindNumeric, "NUMERIC": KindNumeric, "DECIMAL": KindNumeric, "FIXED": KindNumeric,
	"INT": KindNumeric, "INTEGER": KindNumeric, "BIGINT": KindNumeric, "SMALLINT": KindNumeric,
	"TINYINT": KindNumeric, "BYTEINT": KindNumeric, "HUGEINT": KindNumeric, "UHUGEINT": KindNumeric,
	"UBIGINT": KindNumeric, "UINTEGER": KindNumeric, "USMALLINT": KindNumeric, "UTINYINT": KindNumeric,
	"INT2": KindNumeric, "INT4": KindNumeric, "INT8": KindNumeric,
	"FLOAT": KindNumeric, "FLOAT4": KindNumeric, "FLOAT8": KindNumeric, "DOUBLE": KindNumeric,
	"DOUBLE PRECISION": KindNumeric, "REAL": KindNumeric, "MONEY": KindNumeric,

	"VARCHAR": KindCategorical, "TEXT": KindCategorical, "STRING": KindCategorical,
	"CHAR": KindCategorical, "CHARACTER": KindCategorical, "CHARACTER VARYING": KindCategorical,
	"BPCHAR": KindCategorical, "NVARCHAR": KindCategorical, "NCHAR": KindCategorical,
	"ENUM": KindCategorical, "UUID": KindCategorical, "NAME": KindCategorical,

	"DATE": KindTemporal, "TIME": KindTemporal, "DATETIME": KindTemporal, "TIMESTAMP": KindTemporal,
	"TIMESTAMP_NTZ": KindTemporal, "TIMESTAMP_LTZ": KindTemporal, "TIMESTAMP_TZ": KindTemporal,
	"TIMESTAMPTZ": KindTemporal, "TIMESTAMP WITH TIME ZONE": KindTemporal,
	"TIMESTAMP WITHOUT TIME ZONE": KindTemporal, "TIMETZ": KindTemporal,

	"BOOL": KindBoolean, "BOOLEAN": KindBoolean,
}

// ClassifyType maps a driver-reported type name such as "DECIMAL(18,2)" or
// "TIMESTAMP_NTZ" onto a ColumnKind. Unknown names return KindOther and false.
func ClassifyType(dbType string) (ColumnKind, bool) {
	base := strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.IndexByte(base, '('); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	if base == "" {
		return KindOther, false
	}
	kind, ok := kindsByType[base]
	if !ok {
		return KindOther, false
	}
	return kind, true
}

// InferKind classifies a column from its first non-null value.
func InferKind(values []any) ColumnKind {
	for _, value := range values {
		switch value.(type) {
		case nil:
			continue
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, *big.Int:
			return KindNumeric
		case string:
			return KindCategorical
		case time.Time:
			return KindTemporal
		case bool:
			return KindBoolean
		default:
			return KindOther
		}
	}
	return KindOther
}

// ToFloat converts a numeric cell to float64. Warehouse drivers hand back
// NUMBER/DECIMAL values as strings or decimal structs, so those are accepted.
func ToFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case *big.Int:
		if typed == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(typed).Float64()
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	case interface{ Float64() float64 }:
		return typed.Float64(), true
	default:
		return 0, false
	}
}

func normalizeValue(value any, kind ColumnKind) any {
	switch typed := value.(type) {
	case []byte:
		value = string(typed)
	case *big.Int:
		if typed != nil && typed.IsInt64() {
			return typed.Int64()
		}
	}
	if kind != KindNumeric {
		return value
	}
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case interface{ Float64() float64 }:
		return typed.Float64()
	}
	return value
}
