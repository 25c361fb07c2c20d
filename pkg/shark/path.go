package shark

import (
	"fmt"

	"github.com/burrowlabs/burrow/pkg/types"
)

// ObjectPath returns the data-plane path for an object body under the
// given storage layout version.
//
// v1 places bodies under a constant-size subdirectory derived from the
// object name hash; v2 prefixes with the object id and joins id and name
// hash in the leaf, so the placement tuple can be reconstructed from the
// path alone.
func ObjectPath(layout int, owner, objectID, nameHash string) (string, error) {
	switch layout {
	case types.StorageLayoutV1:
		if len(nameHash) < 2 {
			return "", fmt.Errorf("name hash %q too short for layout v1", nameHash)
		}
		return fmt.Sprintf("/v1/%s/%s/%s", owner, nameHash[:2], objectID), nil
	case types.StorageLayoutV2:
		if len(objectID) < 2 {
			return "", fmt.Errorf("object id %q too short for layout v2", objectID)
		}
		return fmt.Sprintf("/v2/%s/%s/%s,%s", owner, objectID[:2], objectID, nameHash), nil
	default:
		return "", fmt.Errorf("unknown storage layout version %d", layout)
	}
}
