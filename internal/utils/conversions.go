package utils

// ToStringSlice reads a decoded JSON claim as a list of strings. A single
// string becomes a one element list; non-string entries are dropped.
func ToStringSlice(claim any) []string {
	switch v := claim.(type) {
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	case []string:
		return append([]string{}, v...)
	case []any:
		stringSlice := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				stringSlice = append(stringSlice, s)
			}
		}
		return stringSlice
	default:
		return []string{}
	}
}
