package detections

import (
	"fmt"
	"regexp"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

const namesMetadataKey = "names"

var nameEntry = regexp.MustCompile(`(\d+)\s*:\s*['"]([^'"]*)['"]`)

// parseNames reads the class map exported into model metadata,
// e.g. {0: 'golf_ball', 1: 'flag'}.
func parseNames(raw string) map[int]string {
	names := make(map[int]string)
	for _, m := range nameEntry.FindAllStringSubmatch(raw, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		names[id] = m[2]
	}
	return names
}

func readNames(path string) (map[int]string, error) {
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	defer meta.Destroy()

	raw, ok, err := meta.LookupCustomMetadataMap(namesMetadataKey)
	if err != nil {
		return nil, fmt.Errorf("lookup %q metadata: %w", namesMetadataKey, err)
	}
	if !ok {
		return map[int]string{}, nil
	}
	return parseNames(raw), nil
}

func className(names map[int]string, id int) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("class_%d", id)
}
