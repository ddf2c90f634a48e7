// Provides platform-appropriate paths for fishbowl.
//
// Paths follow XDG conventions on Linux and platform-native conventions on
// macOS. The program name "fishbowl" is used as the subdirectory under each
// base directory.
package paths
