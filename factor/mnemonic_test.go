package factor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

func TestMnemonicRoundTrip(t *testing.T) {
	key, err := interfaces.GenerateFactorKey()
	require.NoError(t, err)

	mnemonic, err := KeyToMnemonic(key)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(mnemonic), 24, "32 bytes of entropy encode as 24 words")

	back, err := MnemonicToKey(mnemonic)
	require.NoError(t, err)
	assert.Equal(t, key, back, "Conversion must be deterministic and invertible")
}

func TestMnemonicToKeyInvalid(t *testing.T) {
	_, err := MnemonicToKey("")
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	_, err = MnemonicToKey("abandon abandon notaword")
	assert.ErrorIs(t, err, interfaces.ErrValidation, "Unknown words must fail the conversion")

	// Valid words, broken checksum.
	_, err = MnemonicToKey("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestKeyToMnemonicRejectsMalformedKey(t *testing.T) {
	_, err := KeyToMnemonic("zz")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestParseDescriptors(t *testing.T) {
	factors := ParseDescriptors(map[string][]string{
		"pub-a": {`{"module":"seedPhrase","dateAdded":1714000000000,"tssShareIndex":3}`},
		"pub-b": {},
		"pub-c": {`not json`},
		"pub-d": {`{"module":"deviceShare","dateAdded":1714000000000,"browser":"Firefox"}`},
	})

	require.Len(t, factors, 3, "Empty descriptor entries are dropped")

	assert.Equal(t, "pub-a", factors[0].PubKey)
	assert.Equal(t, interfaces.ModuleSeedPhrase, factors[0].Module)
	assert.Equal(t, 3, factors[0].ShareIndex)

	assert.Equal(t, interfaces.ModuleOther, factors[1].Module, "Unparseable descriptors stay visible as other")

	assert.Equal(t, interfaces.ModuleDeviceShare, factors[2].Module)
	assert.Equal(t, "Firefox", factors[2].Device)
}
