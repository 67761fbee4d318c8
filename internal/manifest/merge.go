package manifest

// DeepMerge merges src over dst and returns dst. Objects merge key by key;
// arrays and scalars from src replace those in dst.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[key] = DeepMerge(nil, srcMap)
			continue
		}
		dst[key] = srcVal
	}
	return dst
}
