package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/Felmond13/novusdb/gri"
	"github.com/Felmond13/novusdb/parser"
	"github.com/Felmond13/novusdb/storage"
	"github.com/Felmond13/novusdb/tuning"
)

func isScalarFuncName(name string) bool {
	switch name {
	case "UPPER", "LOWER", "TRIM", "LTRIM", "RTRIM",
		"LENGTH", "SUBSTR", "SUBSTRING", "CONCAT", "REPLACE",
		"ABS", "ROUND", "CEIL", "FLOOR",
		"COALESCE", "TYPEOF", "IFNULL", "NULLIF",
		"INSTR", "REVERSE", "REPEAT", "HEX",
		"VERSION", "DEFAULT_CONFIG_JSON", "BUILD_URI", "TUNING_SQL",
		"ATTACH_SQL", "VACUUM_INTO_SQL", "CREATE_GRI_SQL", "OVERLAP_SQL",
		"PUT_REFSEQ_SQL", "PUT_ASSEMBLY_SQL":
		return true
	}
	return false
}

func evalScalarFunc(fc *parser.FuncCallExpr, doc *storage.Document) (interface{}, error) {
	args := make([]interface{}, len(fc.Args))
	for i, a := range fc.Args {
		v, err := evalValue(a, doc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch fc.Name {
	case "UPPER":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return strings.ToUpper(toString(args[0])), nil

	case "LOWER":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return strings.ToLower(toString(args[0])), nil

	case "TRIM":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return strings.TrimSpace(toString(args[0])), nil

	case "LTRIM":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return strings.TrimLeft(toString(args[0]), " \t\n\r"), nil

	case "RTRIM":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return strings.TrimRight(toString(args[0]), " \t\n\r"), nil

	case "LENGTH":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return int64(len([]rune(toString(args[0])))), nil

	case "SUBSTR", "SUBSTRING":
		return evalSubstr(args)

	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			if a != nil {
				sb.WriteString(toString(a))
			}
		}
		return sb.String(), nil

	case "REPLACE":
		if err := checkArgs(fc.Name, args, 3); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return strings.ReplaceAll(toString(args[0]), toString(args[1]), toString(args[2])), nil

	case "INSTR":
		if err := checkArgs(fc.Name, args, 2); err != nil {
			return nil, err
		}
		if args[0] == nil || args[1] == nil {
			return nil, nil
		}
		idx := strings.Index(toString(args[0]), toString(args[1]))
		if idx < 0 {
			return int64(0), nil
		}
		return int64(idx + 1), nil

	case "REVERSE":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		r := []rune(toString(args[0]))
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r), nil

	case "REPEAT":
		if err := checkArgs(fc.Name, args, 2); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		n, ok := toFloat64(args[1])
		if !ok || n < 0 {
			return "", nil
		}
		return strings.Repeat(toString(args[0]), int(n)), nil

	case "HEX":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		var sb strings.Builder
		for _, b := range []byte(toString(args[0])) {
			fmt.Fprintf(&sb, "%02X", b)
		}
		return sb.String(), nil

	case "ABS":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("ABS: argument must be numeric")
		}
		r := math.Abs(f)
		if isIntVal(args[0]) {
			return int64(r), nil
		}
		return r, nil

	case "ROUND":
		return evalRound(args)

	case "CEIL":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("CEIL: argument must be numeric")
		}
		return int64(math.Ceil(f)), nil

	case "FLOOR":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("FLOOR: argument must be numeric")
		}
		return int64(math.Floor(f)), nil

	case "COALESCE":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil

	case "IFNULL":
		if err := checkArgs(fc.Name, args, 2); err != nil {
			return nil, err
		}
		if args[0] != nil {
			return args[0], nil
		}
		return args[1], nil

	case "NULLIF":
		if err := checkArgs(fc.Name, args, 2); err != nil {
			return nil, err
		}
		if fmt.Sprintf("%v", args[0]) == fmt.Sprintf("%v", args[1]) {
			return nil, nil
		}
		return args[0], nil

	case "TYPEOF":
		if err := checkArgs(fc.Name, args, 1); err != nil {
			return nil, err
		}
		return typeofVal(args[0]), nil

	case "VERSION":
		return tuning.Version(), nil

	case "DEFAULT_CONFIG_JSON":
		return tuning.DefaultConfigJSON(), nil

	case "BUILD_URI":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("BUILD_URI: expected 1 or 2 arguments, got %d", len(args))
		}
		return tuning.BuildURI(toString(args[0]), argStringOpt(args, 1))

	case "TUNING_SQL":
		if len(args) > 2 {
			return nil, fmt.Errorf("TUNING_SQL: expected at most 2 arguments, got %d", len(args))
		}
		return tuning.TuningSQL(argStringOpt(args, 0), argStringOpt(args, 1))

	case "ATTACH_SQL":
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("ATTACH_SQL: expected 2 or 3 arguments, got %d", len(args))
		}
		return tuning.AttachSQL(toString(args[0]), toString(args[1]), argStringOpt(args, 2))

	case "VACUUM_INTO_SQL":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("VACUUM_INTO_SQL: expected 1 or 2 arguments, got %d", len(args))
		}
		return tuning.VacuumIntoSQL(toString(args[0]), argStringOpt(args, 1))

	case "CREATE_GRI_SQL":
		if len(args) < 4 || len(args) > 5 {
			return nil, fmt.Errorf("CREATE_GRI_SQL: expected 4 or 5 arguments, got %d", len(args))
		}
		floor := 0
		if len(args) == 5 {
			f, ok := toFloat64(args[4])
			if !ok {
				return nil, fmt.Errorf("CREATE_GRI_SQL: floor must be numeric")
			}
			floor = int(f)
		}
		return gri.CreateGRISQL(toString(args[0]), toString(args[1]), toString(args[2]), toString(args[3]), floor), nil

	case "OVERLAP_SQL":
		if len(args) < 1 || len(args) > 6 {
			return nil, fmt.Errorf("OVERLAP_SQL: expected 1 to 6 arguments, got %d", len(args))
		}
		table := toString(args[0])
		qrid := argStringDefault(args, 1, "qrid")
		qbeg := argStringDefault(args, 2, "qbeg")
		qend := argStringDefault(args, 3, "qend")
		ceiling := gri.MaxLevel
		if len(args) > 4 {
			f, ok := toFloat64(args[4])
			if !ok {
				return nil, fmt.Errorf("OVERLAP_SQL: ceiling must be numeric")
			}
			ceiling = int(f)
		}
		floor := 0
		if len(args) > 5 {
			f, ok := toFloat64(args[5])
			if !ok {
				return nil, fmt.Errorf("OVERLAP_SQL: floor must be numeric")
			}
			floor = int(f)
		}
		return gri.OverlapSQL(table, qrid, qbeg, qend, ceiling, floor), nil

	case "PUT_REFSEQ_SQL":
		if len(args) < 2 || len(args) > 6 {
			return nil, fmt.Errorf("PUT_REFSEQ_SQL: expected 2 to 6 arguments, got %d", len(args))
		}
		length, ok := toFloat64(args[1])
		if !ok {
			return nil, fmt.Errorf("PUT_REFSEQ_SQL: length must be numeric")
		}
		r := gri.Refseq{
			Name:     toString(args[0]),
			Length:   int64(length),
			Assembly: argStringOpt(args, 2),
			RefgetID: argStringOpt(args, 3),
			MetaJSON: argStringOpt(args, 4),
		}
		if len(args) > 5 {
			rid, ok := toFloat64(args[5])
			if !ok {
				return nil, fmt.Errorf("PUT_REFSEQ_SQL: rid must be numeric")
			}
			r.RID = int64(rid)
		}
		return gri.PutRefseqSQL(r), nil

	case "PUT_ASSEMBLY_SQL":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("PUT_ASSEMBLY_SQL: expected 1 or 2 arguments, got %d", len(args))
		}
		return gri.PutAssemblySQL(toString(args[0]), gri.GRCh38PrimaryAssembly), nil

	default:
		return nil, fmt.Errorf("unknown scalar function: %s", fc.Name)
	}
}

// argStringOpt retourne args[i] en string, ou "" si absent/nil — pour les
// arguments finaux optionnels comme config_json?/schema?.
func argStringOpt(args []interface{}, i int) string {
	if i >= len(args) || args[i] == nil {
		return ""
	}
	return toString(args[i])
}

// argStringDefault est argStringOpt avec un repli non vide, pour les
// arguments texte-d'expression-SQL optionnels d'overlap_sql (qrid?/qbeg?/qend?).
func argStringDefault(args []interface{}, i int, def string) string {
	if i >= len(args) || args[i] == nil {
		return def
	}
	return toString(args[i])
}

func checkArgs(name string, args []interface{}, expected int) error {
	if len(args) != expected {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, expected, len(args))
	}
	return nil
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func typeofVal(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case int64, int:
		return "integer"
	case float64:
		return "real"
	case string:
		return "text"
	case bool:
		return "boolean"
	default:
		return "unknown"
	}
}

func evalSubstr(args []interface{}) (interface{}, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("SUBSTR: expected 2 or 3 arguments, got %d", len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	s := []rune(toString(args[0]))
	sf, ok := toFloat64(args[1])
	if !ok {
		return nil, fmt.Errorf("SUBSTR: start must be numeric")
	}
	start := int(sf) - 1
	if start < 0 {
		start = 0
	}
	if start >= len(s) {
		return "", nil
	}
	if len(args) == 3 {
		lf, ok := toFloat64(args[2])
		if !ok {
			return nil, fmt.Errorf("SUBSTR: length must be numeric")
		}
		end := start + int(lf)
		if end > len(s) {
			end = len(s)
		}
		if end < start {
			return "", nil
		}
		return string(s[start:end]), nil
	}
	return string(s[start:]), nil
}

func evalRound(args []interface{}) (interface{}, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("ROUND: expected 1 or 2 arguments, got %d", len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	f, ok := toFloat64(args[0])
	if !ok {
		return nil, fmt.Errorf("ROUND: argument must be numeric")
	}
	decimals := 0
	if len(args) == 2 {
		d, ok := toFloat64(args[1])
		if !ok {
			return nil, fmt.Errorf("ROUND: decimals must be numeric")
		}
		decimals = int(d)
	}
	pow := math.Pow(10, float64(decimals))
	r := math.Round(f*pow) / pow
	if decimals == 0 {
		return int64(r), nil
	}
	return r, nil
}
