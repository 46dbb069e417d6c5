package explainer

import "strings"

// FallbackMeaning annotates features without a known interpretation
const FallbackMeaning = "General influence on model decision."

var featureMeanings = map[string]string{
	"file_entropy":         "High file entropy suggests the file may be packed or encrypted, common in ransomware.",
	"sw_ent_mean":          "Sliding window entropy shows randomness; high mean implies code obfuscation.",
	"overlay_size":         "Large overlay sections might contain hidden data or payloads.",
	"dll_count":            "Many DLLs indicate the file uses complex system libraries, possibly suspicious.",
	"n_imports":            "High number of imported functions may indicate advanced system access.",
	"has_signature":        "Signed executables are typically legitimate; missing signatures raise suspicion.",
	"rsrc_size":            "Large resources can hide encrypted or malicious content.",
	"api_CreateFileW":      "Creates or modifies files, often used to encrypt user data.",
	"api_CryptEncrypt":     "Uses encryption APIs, strongly correlated with ransomware.",
	"api_CreateProcessW":   "Creates new processes, possibly to spread infection or start encryption routines.",
	"api_InternetConnectA": "May indicate communication with a remote command server.",
	"crypto_kw":            "Cryptographic terms (AES, RSA, etc.) found in code, typical for ransomware.",
}

// Meaning returns the plain-language annotation for a feature name. An exact
// entry wins; otherwise the longest table key that prefixes name is used.
func Meaning(name string) string {
	if m, ok := featureMeanings[name]; ok {
		return m
	}

	best := ""
	for key := range featureMeanings {
		if strings.HasPrefix(name, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return featureMeanings[best]
	}
	return FallbackMeaning
}
