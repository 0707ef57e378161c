package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/fundvault/identity"
)

// KeyStore represents a simple local-first key management system.
//
// EXPERIMENTAL: this filesystem-backed storage surface is not part of the
// stable protocol core API and may change in MINOR releases.
//
// Features:
// - Supports Ed25519 keys only
// - Stores seeds on the local filesystem
// - Generates deterministic account subkeys from a root seed
// - Maps every stored key to its ledger address
//
// This package is designed to be straightforward and explicit.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	Address    identity.Address
	Accounts   []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "fundvault", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) getRootKeyFilePath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) getAccountKeyFilePath(identifier, account string) string {
	return filepath.Join(ks.Directory, identifier, "accounts", account+".key")
}

func CheckKeyName(identifier string) error {
	if identifier == "" {
		return errors.New("identifier cannot be empty")
	}
	for _, char := range identifier {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in identifier", char)
	}
	return nil
}

func CheckAccount(account string) error {
	if account == "" {
		return errors.New("account cannot be empty")
	}
	for _, char := range account {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in account", char)
	}
	return nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeedToFile(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeedFromFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(strings.TrimSpace(string(data)))
}

func (ks *KeyStore) InitializeRootKey(identifier string, seed []byte, overwrite bool) (addr identity.Address, filePath string, err error) {
	if err := CheckKeyName(identifier); err != nil {
		return identity.Address{}, "", err
	}
	filePath = ks.getRootKeyFilePath(identifier)
	if err := ks.saveSeedToFile(filePath, seed, overwrite); err != nil {
		return identity.Address{}, "", err
	}
	addr, err = AddressFromSeed(seed)
	if err != nil {
		return identity.Address{}, "", err
	}
	return addr, filePath, nil
}

func (ks *KeyStore) DeriveAccountKey(from, account string, overwrite bool) (addr identity.Address, filePath string, err error) {
	if err := CheckKeyName(from); err != nil {
		return identity.Address{}, "", err
	}
	if err := CheckAccount(account); err != nil {
		return identity.Address{}, "", err
	}
	rootSeed, err := ks.loadSeedFromFile(ks.getRootKeyFilePath(from))
	if err != nil {
		return identity.Address{}, "", err
	}
	accountSeed, err := DeriveAccountSeed(rootSeed, account)
	if err != nil {
		return identity.Address{}, "", err
	}
	filePath = ks.getAccountKeyFilePath(from, account)
	if err := ks.saveSeedToFile(filePath, accountSeed, overwrite); err != nil {
		return identity.Address{}, "", err
	}
	addr, err = AddressFromSeed(accountSeed)
	if err != nil {
		return identity.Address{}, "", err
	}
	return addr, filePath, nil
}

func (ks *KeyStore) ExportAddress(identifier string, account string) (identity.Address, error) {
	if err := CheckKeyName(identifier); err != nil {
		return identity.Address{}, err
	}
	var seed []byte
	var err error
	if account == "" {
		seed, err = ks.loadSeedFromFile(ks.getRootKeyFilePath(identifier))
	} else {
		if err := CheckAccount(account); err != nil {
			return identity.Address{}, err
		}
		seed, err = ks.loadSeedFromFile(ks.getAccountKeyFilePath(identifier, account))
	}
	if err != nil {
		return identity.Address{}, err
	}
	return AddressFromSeed(seed)
}

// ResolveCaller maps the CLI's caller flags to a ledger address.
//
// Exactly one source must be provided: a literal address, a raw seed, a
// stored key by name (optionally an account subkey), or a seed file path.
func (ks *KeyStore) ResolveCaller(addrText, seedHex, keyName, account, keyFile string) (identity.Address, error) {
	provided := 0
	for _, s := range []string{addrText, seedHex, keyName, keyFile} {
		if s != "" {
			provided++
		}
	}
	if provided == 0 {
		return identity.Address{}, errors.New("no caller provided")
	}
	if provided > 1 {
		return identity.Address{}, errors.New("conflicting caller flags")
	}
	if account != "" && keyName == "" {
		return identity.Address{}, errors.New("account requires a key name")
	}

	switch {
	case addrText != "":
		return identity.ParseAddress(addrText)
	case seedHex != "":
		seed, err := ParseSeedHex(seedHex)
		if err != nil {
			return identity.Address{}, err
		}
		return AddressFromSeed(seed)
	case keyFile != "":
		seed, err := ks.loadSeedFromFile(keyFile)
		if err != nil {
			return identity.Address{}, err
		}
		return AddressFromSeed(seed)
	default:
		return ks.ExportAddress(keyName, account)
	}
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		addr, aerr := ks.ExportAddress(identifier, "")
		if aerr != nil {
			// Directory without a readable root key; skip rather than fail the listing.
			continue
		}
		accountsDir := filepath.Join(ks.Directory, identifier, "accounts")
		accountEntries, rerr := os.ReadDir(accountsDir)
		var accounts []string
		if rerr == nil {
			for _, accountEntry := range accountEntries {
				if accountEntry.IsDir() {
					continue
				}
				if strings.HasSuffix(accountEntry.Name(), ".key") {
					accounts = append(accounts, strings.TrimSuffix(accountEntry.Name(), ".key"))
				}
			}
			sort.Strings(accounts)
		}
		result = append(result, KeyEntry{Identifier: identifier, Address: addr, Accounts: accounts})
	}
	return result, nil
}
